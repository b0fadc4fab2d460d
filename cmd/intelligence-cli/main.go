// Package main provides the utility intelligence CLI entrypoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	outputJSON bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "intelligence-cli",
	Short: "CLI for the utility intelligence service",
	Long: `intelligence-cli talks to a running intelligence API server.

Use this tool to:
- Ask natural-language questions about utility and energy data
- Ingest knowledge chunks for semantic lookup
- Check service and database health

All commands support --json for automation.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8092", "API server base URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output raw JSON responses")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newHealthCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newQueryCmd creates the query subcommand.
func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a natural-language question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Answer        string          `json:"answer"`
				Sources       []string        `json:"sources"`
				Visualization json.RawMessage `json:"visualization"`
				DebugMeta     *struct {
					Intent       string  `json:"intent"`
					Confidence   float64 `json:"confidence"`
					UsedFallback bool    `json:"used_fallback"`
				} `json:"debug_meta"`
			}
			raw, err := post("/query", map[string]string{"question": args[0]}, &resp)
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(raw))
				return nil
			}

			printAnswer(resp.Answer)
			if len(resp.Sources) > 0 {
				printInfo("sources: %v", resp.Sources)
			}
			if resp.DebugMeta != nil {
				printStep("intent=%s confidence=%.2f fallback=%t",
					resp.DebugMeta.Intent, resp.DebugMeta.Confidence, resp.DebugMeta.UsedFallback)
			}
			if len(resp.Visualization) > 0 && string(resp.Visualization) != "null" {
				printInfo("visualization payload attached (%d bytes)", len(resp.Visualization))
			}
			return nil
		},
	}
}

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "ingest [content]",
		Short: "Ingest one knowledge chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			}
			raw, err := post("/ingest-knowledge", map[string]string{
				"content": args[0],
				"source":  source,
			}, &resp)
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(raw))
				return nil
			}
			printSuccess("%s", resp.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "cli", "source tag for the chunk")
	return cmd
}

// newHealthCmd creates the health subcommand.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service and database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
			if err != nil {
				return err
			}
			httpResp, err := http.DefaultClient.Do(req)
			if err != nil {
				printError("service unreachable: %v", err)
				return err
			}
			defer httpResp.Body.Close()

			raw, err := io.ReadAll(httpResp.Body)
			if err != nil {
				return err
			}
			if outputJSON {
				fmt.Println(string(raw))
				return nil
			}

			var resp map[string]string
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("unexpected health response: %w", err)
			}
			if resp["database"] == "connected" {
				printSuccess("service %s: %s, database %s", resp["service"], resp["status"], resp["database"])
			} else {
				printWarn("service %s: %s, database %s", resp["service"], resp["status"], resp["database"])
			}
			return nil
		},
	}
}

// post sends a JSON request and decodes the response into out, also
// returning the raw body for --json output.
func post(path string, body interface{}, out interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utility-explorer/intelligence/internal/storage"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
		{"```sql SELECT value FROM fact_values ```", "SELECT value FROM fact_values"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in), tt.in)
	}
}

func TestSQLPrompt_RendersMetricBullets(t *testing.T) {
	metrics := []storage.MetricMetadata{
		{MetricID: "ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH", Name: "Electricity retail price", Unit: "cents/kWh"},
		{MetricID: "GAS_SALES_MCF"},
	}

	prompt := SQLPrompt("cheapest electricity by state", metrics)

	assert.Contains(t, prompt, "- ELECTRICITY_RETAIL_PRICE_CENTS_PER_KWH: Electricity retail price (cents/kWh)")
	assert.Contains(t, prompt, "- GAS_SALES_MCF")
	assert.Contains(t, prompt, "Question: cheapest electricity by state")
	assert.True(t, strings.HasSuffix(prompt, "SQL Query:"))
}

func TestSQLPrompt_EmptyRegistry(t *testing.T) {
	prompt := SQLPrompt("anything", nil)
	assert.Contains(t, prompt, "(no metrics registered)")
}

package llm

import (
	"fmt"
	"strings"

	"github.com/utility-explorer/intelligence/internal/storage"
)

// SQLPrompt builds the text-to-SQL prompt: a fixed schema description
// with the live metric registry rendered as a bullet list, followed by
// the user's question.
func SQLPrompt(question string, metrics []storage.MetricMetadata) string {
	var bullets strings.Builder
	for _, m := range metrics {
		line := fmt.Sprintf("    - %s", m.MetricID)
		if m.Name != "" {
			line += ": " + m.Name
		}
		if m.Unit != "" {
			line += fmt.Sprintf(" (%s)", m.Unit)
		}
		bullets.WriteString(line + "\n")
	}
	if bullets.Len() == 0 {
		bullets.WriteString("    (no metrics registered)\n")
	}

	schema := fmt.Sprintf(`You are a SQL expert.
Given the following database schema for a utility data application:

1. Table: fact_values
   - metric_id (TEXT): The type of data.
     Available metrics:
%s   - source_id (TEXT): Reporting source system (e.g. 'EIA', 'CENSUS_ACS').
   - geo_id (TEXT): FIPS code for a state (e.g. '48') or place (e.g. '2913600').
   - geo_level (TEXT): Either 'STATE', 'COUNTY' or 'PLACE'.
   - period_start (TIMESTAMP): Start of the reporting period.
   - period_end (TIMESTAMP): End of the reporting period.
   - value_numeric (FLOAT): The actual value.

2. Table: metric_metadata
   - metric_id, name, unit

Important rules:
- Return ONLY the raw SQL query. No markdown, no explanation.
- Always use LIMIT 10 unless asked otherwise.
- If asked for 'states', filter by geo_level = 'STATE'.
- If asked for prices, use metric_id LIKE '%%PRICE%%'.
- State names map to 2-digit FIPS codes in geo_id (e.g. Texas = '48', California = '06').`, bullets.String())

	return fmt.Sprintf("%s\n\nQuestion: %s\nSQL Query:", schema, question)
}

package export

import (
	"encoding/json"
	"io"
	"text/template"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/generator"
)

// Metadata is the content of dataset_metadata.json.
type Metadata struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Config      generator.Config  `json:"config"`
	Statistics  generator.Summary `json:"statistics"`
	Files       []string          `json:"files"`
}

// WriteMetadata encodes the metadata as indented JSON.
func WriteMetadata(w io.Writer, md Metadata) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(md)
}

var readmeTemplate = template.Must(template.New("readme").Funcs(template.FuncMap{
	"pct": func(v float64) string { return formatFloat(float64(int(v*10000+0.5))/100) + "%" },
	"ts":  func(t time.Time) string { return t.Format(TimestampLayout) },
}).Parse(`# Synthetic CDR dataset

Run ` + "`{{.RunID}}`" + ` generated at {{ts .GeneratedAt}} with seed {{.Config.Seed}}.

## Files

| File | Content |
|---|---|
| ` + "`" + CallsFile + "`" + ` | call detail records, one row per call, sorted by start time |
| ` + "`" + UsersFile + "`" + ` | subscriber profiles |
| ` + "`" + TowersFile + "`" + ` | cell tower reference data |
| ` + "`" + CommunitiesFile + "`" + ` | community memberships, one row per user and community |
| ` + "`" + MetadataFile + "`" + ` | configuration and statistics of this run |
| ` + "`" + MetricsFile + "`" + ` | generation metrics in Prometheus text format |
| ` + "`../processed/" + FeaturesFile + "`" + ` | per-user aggregated features |

## Call record schema

| Column | Description |
|---|---|
| call_id | sequential identifier |
| caller_id, callee_id | user ids, never equal |
| call_start_ts, call_end_ts | ` + "`YYYY-MM-DD HH:MM:SS`" + `, end = start + duration |
| call_duration | seconds |
| first_cell_id, last_cell_id | serving towers at call start and end |
| caller_imei, caller_imsi, callee_imsi | device and subscriber identities |
| is_anomaly | 1 for injected anomalies, 0 otherwise |
| anomaly_type | normal, short_call, long_call, off_hour_call or burst_call |

## Summary

- Users: {{.Statistics.Users}}
- Cell towers: {{.Statistics.Towers}}
- Communities: {{.Statistics.Communities}}
- Total calls: {{.Statistics.TotalCalls}}
- Normal calls: {{.Statistics.NormalCalls}}
- Anomalous calls: {{.Statistics.AnomalousCalls}} ({{pct .Statistics.AnomalyRatio}})
- Date range: {{ts .Statistics.DateRange.Start}} to {{ts .Statistics.DateRange.End}}
- Duration: mean {{printf "%.1f" .Statistics.Duration.Mean}} s, median {{printf "%.1f" .Statistics.Duration.Median}} s, min {{.Statistics.Duration.Min}} s, max {{.Statistics.Duration.Max}} s

### Anomaly types

| Type | Calls |
|---|---|
{{- range $k, $v := .Statistics.AnomalyTypes}}
| {{$k}} | {{$v}} |
{{- end}}

### Duration buckets

| Bucket | Calls |
|---|---|
{{- range .Statistics.DurationBuckets}}
| {{.Label}} | {{.Count}} |
{{- end}}

### Calls per day

| Day | Calls |
|---|---|
{{- range .Statistics.CallsPerDay}}
| {{.Label}} | {{.Count}} |
{{- end}}

### Calls per hour

| Hour | Calls |
|---|---|
{{- range $h, $n := .Statistics.HourlyCalls}}
| {{printf "%02d" $h}} | {{$n}} |
{{- end}}
`))

// WriteReadme renders the dataset description.
func WriteReadme(w io.Writer, md Metadata) error {
	return readmeTemplate.Execute(w, md)
}

package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"mercator-hq/truncator/pkg/retention"
	"mercator-hq/truncator/pkg/schema"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output, one row per swept record.
	FormatCSV OutputFormat = "csv"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json or csv)", s)
	}
}

// Formatter formats command output.
type Formatter interface {
	Format(data interface{}) ([]byte, error)
	FormatTo(w io.Writer, data interface{}) error
}

// TextFormatter formats output as human-readable text. Sweep results,
// batch results and resolutions get a dedicated layout; anything else is
// printed with %v.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data interface{}) ([]byte, error) {
	var b strings.Builder
	if err := f.FormatTo(&b, data); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case *retention.Result:
		return writeResult(w, v)
	case *retention.BatchResult:
		return writeBatch(w, v)
	case *schema.Resolution:
		return writeResolution(w, v)
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

func writeResult(w io.Writer, r *retention.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Record:\t%s\n", r.Record)
	fmt.Fprintf(tw, "Sweep ID:\t%s\n", r.SweepID)
	fmt.Fprintf(tw, "State:\t%s\n", r.State)
	fmt.Fprintf(tw, "Outcome:\t%s\n", r.Outcome)
	if r.Skipped != "" {
		fmt.Fprintf(tw, "Skipped:\t%s\n", r.Skipped)
	}
	if r.Candidates != nil {
		fmt.Fprintf(tw, "Candidates:\t%d%s\n", r.Candidates.Len(), ruleSummary(r.Candidates))
		if r.Candidates.Len() > 0 {
			fmt.Fprintf(tw, "Versions:\t%s\n", joinInts(r.Candidates.Versions))
		}
	}
	if r.DryRun {
		fmt.Fprintf(tw, "Deleted:\t0 (dry run)\n")
	} else {
		fmt.Fprintf(tw, "Deleted:\t%d\n", r.Deleted)
	}
	for _, table := range r.Tables {
		if n, ok := r.PerTable[table]; ok {
			fmt.Fprintf(tw, "  %s\t%d\n", table, n)
		}
	}
	fmt.Fprintf(tw, "Duration:\t%s\n", r.Duration)

	return tw.Flush()
}

func writeBatch(w io.Writer, b *retention.BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Type:\t%s\n", b.Type)
	fmt.Fprintf(tw, "Records:\t%d\n", b.Records)
	fmt.Fprintf(tw, "Deleted:\t%d\n", b.Deleted)
	fmt.Fprintf(tw, "Failed:\t%d\n", b.Failed)

	if len(b.Results) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "RECORD\tOUTCOME\tCANDIDATES\tDELETED")
		for _, r := range b.Results {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", r.Record.ID, r.Outcome, candidateCount(r), r.Deleted)
		}
	}

	return tw.Flush()
}

func writeResolution(w io.Writer, r *schema.Resolution) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Type:\t%s\n", r.Type)
	fmt.Fprintf(tw, "Chain:\t%s\n", strings.Join(r.Chain, " -> "))
	fmt.Fprintf(tw, "Path addressed:\t%t\n", r.PathAddressed)
	fmt.Fprintf(tw, "Stages:\t%t\n", r.HasStages)
	fmt.Fprintln(tw, "Tables:")
	for _, table := range r.Tables {
		marker := ""
		if table == r.BaseTable {
			marker = "\t(base)"
		}
		fmt.Fprintf(tw, "  %s%s\n", table, marker)
	}

	return tw.Flush()
}

func ruleSummary(c *retention.Candidates) string {
	if len(c.ByRule) == 0 {
		return ""
	}
	rules := make([]string, 0, len(c.ByRule))
	for rule, versions := range c.ByRule {
		rules = append(rules, fmt.Sprintf("%s %d", rule, len(versions)))
	}
	sort.Strings(rules)
	return " (" + strings.Join(rules, ", ") + ")"
}

func candidateCount(r *retention.Result) int {
	if r.Candidates == nil {
		return 0
	}
	return r.Candidates.Len()
}

func joinInts(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data interface{}) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// csvHeaders are the columns written for sweep results.
var csvHeaders = []string{"type", "record_id", "state", "outcome", "candidates", "deleted", "dry_run"}

// CSVFormatter formats sweep results as CSV, one row per record.
type CSVFormatter struct{}

// Format converts data to CSV format.
func (f *CSVFormatter) Format(data interface{}) ([]byte, error) {
	var b strings.Builder
	if err := f.FormatTo(&b, data); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data interface{}) error {
	var results []*retention.Result
	switch v := data.(type) {
	case *retention.Result:
		results = []*retention.Result{v}
	case *retention.BatchResult:
		results = v.Results
	default:
		return fmt.Errorf("CSV output not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(csvHeaders); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Record.TypeName,
			strconv.FormatInt(r.Record.ID, 10),
			string(r.State),
			r.Outcome,
			strconv.Itoa(candidateCount(r)),
			strconv.FormatInt(r.Deleted, 10),
			strconv.FormatBool(r.DryRun),
		}
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}

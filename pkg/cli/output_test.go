package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"mercator-hq/truncator/pkg/history"
	"mercator-hq/truncator/pkg/retention"
	"mercator-hq/truncator/pkg/schema"
)

func sampleResult() *retention.Result {
	return &retention.Result{
		SweepID: "sweep-1",
		Record:  history.Record{TypeName: "Page", ID: 12},
		State:   retention.StateDone,
		Outcome: retention.OutcomeDeleted,
		Candidates: &retention.Candidates{
			Versions: []int64{1, 2, 3},
			ByRule: map[retention.Rule][]int64{
				retention.RulePublished: {2, 1},
				retention.RuleDrafts:    {3},
			},
		},
		Tables:   []string{"SiteTree_Versions", "Page_Versions"},
		Deleted:  6,
		PerTable: map[string]int64{"SiteTree_Versions": 3, "Page_Versions": 3},
		Duration: 15 * time.Millisecond,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextFormatterFallback(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q, want %q", string(output), "test message\n")
	}
}

func TestTextFormatterResult(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, sampleResult()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Page#12",
		"sweep-1",
		"DONE",
		"drafts 1, published 2",
		"1,2,3",
		"SiteTree_Versions",
		"Page_Versions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextFormatterDryRun(t *testing.T) {
	result := sampleResult()
	result.DryRun = true
	result.Outcome = retention.OutcomeDryRun
	result.Deleted = 0
	result.PerTable = nil

	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, result); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), "0 (dry run)") {
		t.Errorf("dry run output missing marker:\n%s", buf.String())
	}
}

func TestTextFormatterBatch(t *testing.T) {
	batch := &retention.BatchResult{
		Type:    "Page",
		Records: 2,
		Deleted: 6,
		Results: []*retention.Result{sampleResult(), {Record: history.Record{TypeName: "Page", ID: 13}, Outcome: retention.OutcomeNoop}},
	}

	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, batch); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "RECORD") || !strings.Contains(out, "noop") {
		t.Errorf("batch output incomplete:\n%s", out)
	}
}

func TestTextFormatterResolution(t *testing.T) {
	res := &schema.Resolution{
		Type:      "Page",
		Chain:     []string{"Page", "SiteTree"},
		BaseTable: "SiteTree_Versions",
		Tables:    []string{"SiteTree_Versions", "Page_Versions"},
		HasStages: true,
	}

	buf := &bytes.Buffer{}
	if err := (&TextFormatter{}).FormatTo(buf, res); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Page -> SiteTree") || !strings.Contains(out, "(base)") {
		t.Errorf("resolution output incomplete:\n%s", out)
	}
}

func TestJSONFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, sampleResult()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	var decoded struct {
		SweepID string `json:"sweep_id"`
		Record  struct {
			Type string `json:"type"`
			ID   int64  `json:"id"`
		} `json:"record"`
		Deleted  int64            `json:"deleted"`
		PerTable map[string]int64 `json:"per_table"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("FormatTo() produced invalid JSON: %v", err)
	}
	if decoded.SweepID != "sweep-1" || decoded.Record.ID != 12 || decoded.Deleted != 6 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.PerTable["Page_Versions"] != 3 {
		t.Errorf("per_table = %v", decoded.PerTable)
	}
}

func TestCSVFormatter(t *testing.T) {
	batch := &retention.BatchResult{
		Type:    "Page",
		Results: []*retention.Result{sampleResult(), {Record: history.Record{TypeName: "Page", ID: 13}, State: retention.StateDone, Outcome: retention.OutcomeNoop}},
	}

	output, err := (&CSVFormatter{}).Format(batch)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(output)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if got := strings.Join(rows[1], ","); got != "Page,12,DONE,deleted,3,6,false" {
		t.Errorf("row 1 = %q", got)
	}
	if got := strings.Join(rows[2], ","); got != "Page,13,DONE,noop,0,0,false" {
		t.Errorf("row 2 = %q", got)
	}
}

func TestCSVFormatterUnsupported(t *testing.T) {
	if _, err := (&CSVFormatter{}).Format("plain"); err == nil {
		t.Error("Format() expected error for unsupported type")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{format: FormatText, want: "*cli.TextFormatter"},
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: "unknown", want: "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got := fmt.Sprintf("%T", NewFormatter(tt.format))
			if got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

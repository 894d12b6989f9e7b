package schema

import (
	"strings"
	"testing"
)

// TestParseEntryID verifies canonical entry ids split into file and function.
func TestParseEntryID(t *testing.T) {
	ep, err := ParseEntryID("backend/services/analytics.go::GetMetricPeriodAnalytics")
	if err != nil {
		t.Fatalf("ParseEntryID: %v", err)
	}
	if ep.File != "backend/services/analytics.go" || ep.Function != "GetMetricPeriodAnalytics" {
		t.Errorf("unexpected entry point %+v", ep)
	}
}

// TestParseEntryIDLeadingSlash verifies ids with a leading slash normalize
// to repo-relative paths.
func TestParseEntryIDLeadingSlash(t *testing.T) {
	ep, err := ParseEntryID("/pkg/stats.go::ComputeStats")
	if err != nil {
		t.Fatalf("ParseEntryID: %v", err)
	}
	if ep.File != "pkg/stats.go" {
		t.Errorf("file = %q, want repo-relative path", ep.File)
	}
}

// TestParseEntryIDInvalid verifies malformed ids are rejected.
func TestParseEntryIDInvalid(t *testing.T) {
	for _, id := range []string{"", "no-separator", "::fn", "file.go::"} {
		if _, err := ParseEntryID(id); err == nil {
			t.Errorf("ParseEntryID(%q) succeeded, want error", id)
		}
	}
}

// TestDecodeArgs verifies args and kwargs decode in order.
func TestDecodeArgs(t *testing.T) {
	a := DecodeArgs(`{"args": [1, "two"], "kwargs": {"name": "x"}}`)
	if len(a.Args) != 2 {
		t.Fatalf("args = %v, want 2 entries", a.Args)
	}
	if a.Kwargs["name"] != "x" {
		t.Errorf("kwargs = %v", a.Kwargs)
	}
}

// TestDecodeArgsMalformed verifies malformed input degrades to empty
// arguments instead of failing.
func TestDecodeArgsMalformed(t *testing.T) {
	for _, in := range []string{"", "{not json", `"just a string"`, `{"args": 5}`} {
		a := DecodeArgs(in)
		if len(a.Args) != 0 || len(a.Kwargs) != 0 {
			t.Errorf("DecodeArgs(%q) = %+v, want empty", in, a)
		}
	}
}

// TestArgumentsOrdered verifies kwargs fill parameters by name after
// positional args are consumed.
func TestArgumentsOrdered(t *testing.T) {
	a := DecodeArgs(`{"args": [10], "kwargs": {"period": "last_7_days"}}`)
	ordered := a.Ordered([]string{"count", "period", "missing"})
	if ordered[0] != "10" {
		t.Errorf("ordered[0] = %q", ordered[0])
	}
	if ordered[1] != `"last_7_days"` {
		t.Errorf("ordered[1] = %q", ordered[1])
	}
	if ordered[2] != "" {
		t.Errorf("ordered[2] = %q, want empty for unfilled param", ordered[2])
	}
}

// TestGenerateJSONSchema verifies the exported schema mentions the
// request fields.
func TestGenerateJSONSchema(t *testing.T) {
	data, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema: %v", err)
	}
	for _, field := range []string{"entry_full_id", "stop_line", "repo_root"} {
		if !strings.Contains(string(data), field) {
			t.Errorf("schema missing field %q", field)
		}
	}
}

// TestValidateRequest verifies domain rules catch bad requests.
func TestValidateRequest(t *testing.T) {
	problems, err := ValidateRequest(&TraceRequest{EntryFullID: "nope", StopLine: -1})
	if err != nil {
		t.Fatalf("ValidateRequest: %v", err)
	}
	if len(problems) < 2 {
		t.Errorf("problems = %v, want entry id and stop_line complaints", problems)
	}

	problems, err = ValidateRequest(&TraceRequest{EntryFullID: "a.go::F", StopLine: 10})
	if err != nil {
		t.Fatalf("ValidateRequest: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("valid request rejected: %v", problems)
	}
}

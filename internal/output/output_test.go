package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for _, valid := range []string{"table", "json", "yaml"} {
		if _, err := ParseFormat(valid); err != nil {
			t.Errorf("ParseFormat(%q): %v", valid, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded, want error")
	}
}

func TestJSONIsIndented(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, map[string]string{"name": "b1"}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"name\": \"b1\"") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestYAMLHonorsJSONTags(t *testing.T) {
	type item struct {
		LifecycleState string `json:"lifecycle_state"`
	}
	var buf bytes.Buffer
	if err := YAML(&buf, item{LifecycleState: "active"}); err != nil {
		t.Fatalf("YAML: %v", err)
	}
	if !strings.Contains(buf.String(), "lifecycle_state: active") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, "PROVIDER", "NAME")
	table.Row("gcp", "b1")
	table.Row("a-long-provider", "b2")
	if err := table.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	nameCol := strings.Index(lines[0], "NAME")
	if nameCol < 0 {
		t.Fatalf("header = %q", lines[0])
	}
	for _, line := range lines[1:] {
		if idx := strings.Index(line, "b"); idx != nameCol {
			t.Errorf("row %q: name at %d, want %d", line, idx, nameCol)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this is a longer message", 10, "this is..."},
		{"abc", 2, "ab"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

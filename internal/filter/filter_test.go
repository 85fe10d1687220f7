package filter

import (
	"testing"

	"github.com/pragmatiks/pragma/internal/api"
)

func TestCompileRejectsInvalidExpressions(t *testing.T) {
	if _, err := Compile(`provider ==`); err == nil {
		t.Error("expected compile error for truncated expression")
	}
	if _, err := Compile(`1 + 2`); err == nil {
		t.Error("expected compile error for non-boolean expression")
	}
}

func TestMatchUsesJSONFieldNames(t *testing.T) {
	pred, err := Compile(`provider == "gcp" && lifecycle_state == "failed"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tests := []struct {
		name string
		res  api.Resource
		want bool
	}{
		{"matching", api.Resource{Provider: "gcp", Resource: "storage", Name: "b1", LifecycleState: "failed"}, true},
		{"wrong state", api.Resource{Provider: "gcp", Resource: "storage", Name: "b1", LifecycleState: "active"}, false},
		{"wrong provider", api.Resource{Provider: "aws", Resource: "storage", Name: "b1", LifecycleState: "failed"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pred.Match(tt.res)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchToleratesAbsentFields(t *testing.T) {
	pred, err := Compile(`error_message != nil && error_message contains "timeout"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got, err := pred.Match(api.DeadLetterEvent{ID: "evt-1", ErrorMessage: "upstream timeout"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !got {
		t.Error("Match = false, want true")
	}

	got, err = pred.Match(api.Resource{Provider: "gcp", Resource: "storage", Name: "b1"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if got {
		t.Error("Match = true for item without the field, want false")
	}
}

package jsonx

import (
	"errors"
	"testing"
)

type testPlan struct {
	Action     string `json:"action"`
	Confidence string `json:"confidence"`
}

func TestPureJSON(t *testing.T) {
	result, err := Decode[testPlan](`{"action": "search_only", "confidence": "low"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != "search_only" {
		t.Errorf("expected action 'search_only', got '%s'", result.Action)
	}
	if result.Confidence != "low" {
		t.Errorf("expected confidence 'low', got '%s'", result.Confidence)
	}
}

func TestFencedJSONMatchesUnwrapped(t *testing.T) {
	plain := `{"action": "vision", "confidence": "high"}`
	fenced := "```json\n" + plain + "\n```"
	bare := "```\n" + plain + "\n```"

	want, err := Decode[testPlan](plain)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, in := range []string{fenced, bare} {
		got, err := Decode[testPlan](in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", in, err)
		}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	}
}

func TestJSONWithSurroundingText(t *testing.T) {
	result, err := Decode[testPlan](`Let me think... {"action": "specialist", "confidence": "medium"} Done!`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Action != "specialist" {
		t.Errorf("expected action 'specialist', got '%s'", result.Action)
	}
}

func TestNoJSON(t *testing.T) {
	_, err := Decode[testPlan]("This is just plain text without any JSON.")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got: %v", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	_, err := Decode[testPlan](`{"action": "x", confidence: }`)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestFieldsDistinguishesAbsentFromNull(t *testing.T) {
	fields, err := Fields(`{"action": "search_only", "search_query": null}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := fields["search_query"]; !ok {
		t.Error("expected explicit null field to be present")
	}
	if _, ok := fields["capability"]; ok {
		t.Error("expected absent field to be missing")
	}
}

func TestStripCodeFence(t *testing.T) {
	if got := StripCodeFence("  ```json\n{}\n```  "); got != "{}" {
		t.Errorf("expected '{}', got %q", got)
	}
	if got := StripCodeFence("{}"); got != "{}" {
		t.Errorf("expected '{}', got %q", got)
	}
}

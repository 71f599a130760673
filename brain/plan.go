package brain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/steward/internal/jsonx"
	"github.com/richinex/steward/llm"
)

// Action is the execution path chosen for a message.
type Action string

const (
	ActionDirectAnswer    Action = "answer_directly"
	ActionSearchAndAnswer Action = "search_and_answer"
	ActionSearchOnly      Action = "search_only"
	ActionSpecialist      Action = "specialist"
	ActionMultiStep       Action = "multi_step"
	ActionTranscribe      Action = "transcribe"
	ActionVision          Action = "vision"
	ActionNotesSearch     Action = "embeddings_search"
	ActionCodeCompletion  Action = "code_fim"
)

// Actions lists every action in prompt order.
func Actions() []Action {
	return []Action{
		ActionDirectAnswer,
		ActionSearchAndAnswer,
		ActionSearchOnly,
		ActionSpecialist,
		ActionMultiStep,
		ActionTranscribe,
		ActionVision,
		ActionNotesSearch,
		ActionCodeCompletion,
	}
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// Confidence is the planner's certainty about its own answer.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ActionPlan is a structured decision for a single message.
type ActionPlan struct {
	Action        Action         `json:"action"`
	Confidence    Confidence     `json:"confidence"`
	SearchQuery   string         `json:"search_query,omitempty"`
	FetchFullPage bool           `json:"fetch_full_page"`
	Specialist    string         `json:"specialist,omitempty"`
	Capability    llm.Capability `json:"capability"`
	Reasoning     string         `json:"reasoning"`
	Response      string         `json:"response,omitempty"`
}

// ErrPlanParse marks a planner reply that could not be decoded.
var ErrPlanParse = errors.New("failed to parse plan")

const defaultReasoning = "Failed to parse brain response, defaulting to direct answer"

// DefaultPlan is the safe fallback: answer directly with high confidence.
func DefaultPlan() ActionPlan {
	return ActionPlan{
		Action:     ActionDirectAnswer,
		Confidence: ConfidenceHigh,
		Capability: llm.CapabilityChat,
		Reasoning:  defaultReasoning,
	}
}

// ParsePlan decodes a planner reply, optionally fenced. Absent fields are
// backfilled from DefaultPlan and out-of-vocabulary values are normalized.
// On a syntax error the default plan is returned together with ErrPlanParse.
func ParsePlan(reply string) (ActionPlan, error) {
	fields, err := jsonx.Fields(reply)
	if err != nil {
		plan := DefaultPlan()
		plan.Reasoning = fmt.Sprintf("Parse error: %s, defaulting to direct answer", truncate(err.Error(), 40))
		return plan, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}

	plan := DefaultPlan()

	if s, ok := stringField(fields, "action"); ok {
		plan.Action = Action(strings.ToLower(s))
		if !plan.Action.Valid() {
			plan.Action = ActionDirectAnswer
		}
	}
	if s, ok := stringField(fields, "confidence"); ok {
		switch c := Confidence(strings.ToLower(s)); c {
		case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
			plan.Confidence = c
		}
	}
	if s, ok := stringField(fields, "reasoning"); ok {
		plan.Reasoning = s
	}
	if s, ok := stringField(fields, "search_query"); ok {
		plan.SearchQuery = s
	}
	if s, ok := stringField(fields, "specialist"); ok && !strings.EqualFold(s, "null") {
		plan.Specialist = strings.ToLower(s)
	}
	if s, ok := stringField(fields, "capability"); ok {
		plan.Capability = llm.ParseCapability(strings.ToLower(s))
	}
	if s, ok := stringField(fields, "response"); ok {
		plan.Response = s
	}
	plan.FetchFullPage = boolField(fields, "fetch_full_page")

	return plan, nil
}

// stringField returns a trimmed, non-empty string member. Null, absent and
// non-string members report false.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// boolField accepts a JSON boolean or the strings "true"/"false".
func boolField(fields map[string]json.RawMessage, name string) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is a normalized model response. Raw holds the full JSON object
// (with isValid guaranteed present); the summary fields are what history
// and stats care about.
type Result struct {
	Raw json.RawMessage

	valid      bool
	reason     string
	suggestion string

	signal     string
	trend      string
	tradeGrade string
	pattern    string
	riskReward string
	confidence int
}

// NormalizeResult parses the raw model JSON into a Result. A missing
// isValid field defaults to true, matching the model contract.
func NormalizeResult(raw json.RawMessage) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}

	r := &Result{valid: true}
	if v, ok := fields["isValid"]; ok {
		if err := json.Unmarshal(v, &r.valid); err != nil {
			r.valid = true
		}
	} else {
		fields["isValid"] = json.RawMessage("true")
	}

	normalized, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("normalize model response: %w", err)
	}
	r.Raw = normalized

	r.reason = stringField(fields, "reason")
	r.suggestion = stringField(fields, "suggestion")
	r.signal = stringField(fields, "signal")
	r.trend = stringField(fields, "trend")
	r.tradeGrade = stringField(fields, "tradeGrade")
	r.pattern = stringField(fields, "pattern")
	r.riskReward = stringField(fields, "riskReward")
	r.confidence = intField(fields, "confidence")
	return r, nil
}

// Valid reports whether the model could read the chart.
func (r *Result) Valid() bool { return r.valid }

// Reason is the model's explanation for an invalid result.
func (r *Result) Reason() string { return r.reason }

// Suggestion is the model's advice for an invalid result.
func (r *Result) Suggestion() string { return r.suggestion }

// Signal returns the trade signal, defaulting to NEUTRAL.
func (r *Result) Signal() string {
	if s := strings.ToUpper(strings.TrimSpace(r.signal)); s != "" {
		return s
	}
	return "NEUTRAL"
}

// Trend returns the chart trend, defaulting to neutral.
func (r *Result) Trend() string {
	if t := strings.ToLower(strings.TrimSpace(r.trend)); t != "" {
		return t
	}
	return "neutral"
}

// TradeGrade returns the setup grade, possibly empty.
func (r *Result) TradeGrade() string { return r.tradeGrade }

// Pattern returns the identified chart pattern, possibly empty.
func (r *Result) Pattern() string { return r.pattern }

// RiskReward returns the risk/reward ratio string, possibly empty.
func (r *Result) RiskReward() string { return r.riskReward }

// Confidence returns the model's confidence, defaulting to 3 and clamped
// to the 1..5 scale.
func (r *Result) Confidence() int {
	if r.confidence < 1 || r.confidence > 5 {
		return 3
	}
	return r.confidence
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func intField(fields map[string]json.RawMessage, key string) int {
	raw, ok := fields[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return int(f)
}

package analyses

import (
	"encoding/json"
	"testing"
)

func TestNormalizeResultDefaultsIsValid(t *testing.T) {
	r, err := NormalizeResult(json.RawMessage(`{"signal":"BULLISH","trend":"bullish"}`))
	if err != nil {
		t.Fatalf("NormalizeResult: %v", err)
	}
	if !r.Valid() {
		t.Error("missing isValid must default to true")
	}

	var out map[string]any
	if err := json.Unmarshal(r.Raw, &out); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if out["isValid"] != true {
		t.Error("normalized payload must carry isValid")
	}
}

func TestNormalizeResultInvalidVariant(t *testing.T) {
	r, err := NormalizeResult(json.RawMessage(`{"isValid":false,"reason":"not a chart","suggestion":"upload a chart"}`))
	if err != nil {
		t.Fatalf("NormalizeResult: %v", err)
	}
	if r.Valid() {
		t.Fatal("expected invalid result")
	}
	if r.Reason() != "not a chart" || r.Suggestion() != "upload a chart" {
		t.Errorf("reason = %q, suggestion = %q", r.Reason(), r.Suggestion())
	}
}

func TestNormalizeResultSummaryDefaults(t *testing.T) {
	r, err := NormalizeResult(json.RawMessage(`{"isValid":true}`))
	if err != nil {
		t.Fatalf("NormalizeResult: %v", err)
	}
	if got := r.Signal(); got != "NEUTRAL" {
		t.Errorf("signal = %q, want NEUTRAL", got)
	}
	if got := r.Trend(); got != "neutral" {
		t.Errorf("trend = %q, want neutral", got)
	}
	if got := r.Confidence(); got != 3 {
		t.Errorf("confidence = %d, want 3", got)
	}
}

func TestNormalizeResultSummaryNormalization(t *testing.T) {
	r, err := NormalizeResult(json.RawMessage(`{"signal":"bearish","trend":"BEARISH","confidence":5,"tradeGrade":"A","riskReward":"1:2.5"}`))
	if err != nil {
		t.Fatalf("NormalizeResult: %v", err)
	}
	if got := r.Signal(); got != "BEARISH" {
		t.Errorf("signal = %q, want BEARISH", got)
	}
	if got := r.Trend(); got != "bearish" {
		t.Errorf("trend = %q, want bearish", got)
	}
	if got := r.Confidence(); got != 5 {
		t.Errorf("confidence = %d, want 5", got)
	}
	if r.TradeGrade() != "A" || r.RiskReward() != "1:2.5" {
		t.Errorf("grade = %q, rr = %q", r.TradeGrade(), r.RiskReward())
	}
}

func TestNormalizeResultClampsConfidence(t *testing.T) {
	for _, tc := range []struct {
		payload string
		want    int
	}{
		{`{"confidence":0}`, 3},
		{`{"confidence":9}`, 3},
		{`{"confidence":1}`, 1},
		{`{"confidence":"high"}`, 3},
	} {
		r, err := NormalizeResult(json.RawMessage(tc.payload))
		if err != nil {
			t.Fatalf("NormalizeResult(%s): %v", tc.payload, err)
		}
		if got := r.Confidence(); got != tc.want {
			t.Errorf("confidence(%s) = %d, want %d", tc.payload, got, tc.want)
		}
	}
}

func TestNormalizeResultRejectsNonObject(t *testing.T) {
	if _, err := NormalizeResult(json.RawMessage(`"just a string"`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

package analyses

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"strings"
	"testing"

	"chartlens-backend/internal/history"
	"chartlens-backend/internal/imaging"
	"chartlens-backend/internal/shared/storage/localdb"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/vision"
)

type fakeVision struct {
	calls    int
	response json.RawMessage
	err      error
}

func (f *fakeVision) Analyze(ctx context.Context, in vision.AnalyzeInput) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func chartDataURI(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

type pipeline struct {
	svc     *Service
	vision  *fakeVision
	usage   *usage.Service
	history *history.Service
}

func newPipeline(t *testing.T, v *fakeVision, limit int) *pipeline {
	t.Helper()
	db, err := localdb.OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	usageSvc := usage.NewService(usage.NewMemoryStore(), nil, limit)
	historySvc := history.NewService(history.NewSQLiteRepo(db, 20), nil, nil)

	var client vision.Client
	if v != nil {
		client = v
	}
	return &pipeline{
		svc:     NewService(client, usageSvc, historySvc, nil),
		vision:  v,
		usage:   usageSvc,
		history: historySvc,
	}
}

func (p *pipeline) counts(t *testing.T, subject string) (used int, historyLen int) {
	t.Helper()
	snap, err := p.usage.Snapshot(context.Background(), subject, "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	entries, err := p.history.List(context.Background(), subject, false)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return snap.Used, len(entries)
}

func TestAnalyzeValidResultRecordsOnce(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true,"signal":"BULLISH","trend":"bullish","confidence":4}`)}
	p := newPipeline(t, v, 999)

	outcome, err := p.svc.Analyze(context.Background(), Request{
		Subject: "guest:abc",
		Image:   chartDataURI(t),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if outcome.ID == "" {
		t.Error("expected a stored analysis id")
	}
	if !outcome.Result.Valid() {
		t.Error("expected a valid result")
	}
	if v.calls != 1 {
		t.Errorf("vision calls = %d, want 1", v.calls)
	}

	used, historyLen := p.counts(t, "guest:abc")
	if used != 1 {
		t.Errorf("usage = %d, want 1", used)
	}
	if historyLen != 1 {
		t.Errorf("history = %d, want 1", historyLen)
	}
}

func TestAnalyzeInvalidResultLeavesStateUntouched(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":false,"reason":"too blurry","suggestion":"hold steady"}`)}
	p := newPipeline(t, v, 999)

	outcome, err := p.svc.Analyze(context.Background(), Request{
		Subject: "guest:abc",
		Image:   chartDataURI(t),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if outcome.Result.Valid() {
		t.Fatal("expected invalid result")
	}
	if outcome.ID != "" {
		t.Error("invalid results must not be assigned a stored id")
	}
	if outcome.Result.Reason() != "too blurry" {
		t.Errorf("reason = %q", outcome.Result.Reason())
	}

	used, historyLen := p.counts(t, "guest:abc")
	if used != 0 || historyLen != 0 {
		t.Errorf("usage = %d, history = %d; invalid results must not consume quota or history", used, historyLen)
	}
}

func TestAnalyzeMalformedImageNeverReachesUpstream(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	p := newPipeline(t, v, 999)

	for _, input := range []string{"", "not a data uri", "data:application/pdf;base64,AAAA"} {
		_, err := p.svc.Analyze(context.Background(), Request{Subject: "guest:abc", Image: input})
		var verr *imaging.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("input %q: err = %v, want *imaging.ValidationError", input, err)
		}
	}

	if v.calls != 0 {
		t.Errorf("vision calls = %d, want 0", v.calls)
	}
}

func TestAnalyzeOversizedImageNeverReachesUpstream(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	p := newPipeline(t, v, 999)

	maxBytes := imaging.MaxImageBytes
	oversized := "data:image/png;base64," + strings.Repeat("A", int(float64(maxBytes)*1.33)+16)
	_, err := p.svc.Analyze(context.Background(), Request{Subject: "guest:abc", Image: oversized})

	var verr *imaging.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *imaging.ValidationError", err)
	}
	if !verr.Oversize {
		t.Error("expected the oversize flag")
	}
	if v.calls != 0 {
		t.Errorf("vision calls = %d, want 0", v.calls)
	}
}

func TestAnalyzeQuotaGateBlocksBeforeUpstream(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	p := newPipeline(t, v, 1)
	ctx := context.Background()

	if _, err := p.svc.Analyze(ctx, Request{Subject: "guest:abc", Image: chartDataURI(t)}); err != nil {
		t.Fatalf("first analyze: %v", err)
	}

	_, err := p.svc.Analyze(ctx, Request{Subject: "guest:abc", Image: chartDataURI(t)})
	if !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("err = %v, want ErrLimitReached", err)
	}
	if v.calls != 1 {
		t.Errorf("vision calls = %d, want 1 (gated request must not reach upstream)", v.calls)
	}
}

func TestAnalyzeUnconfiguredVision(t *testing.T) {
	p := newPipeline(t, nil, 999)

	_, err := p.svc.Analyze(context.Background(), Request{Subject: "guest:abc", Image: chartDataURI(t)})
	if !errors.Is(err, vision.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAnalyzeUpstreamFailureDoesNotConsumeQuota(t *testing.T) {
	v := &fakeVision{err: errors.New("upstream timeout")}
	p := newPipeline(t, v, 999)

	_, err := p.svc.Analyze(context.Background(), Request{Subject: "guest:abc", Image: chartDataURI(t)})
	if err == nil {
		t.Fatal("expected error")
	}

	used, historyLen := p.counts(t, "guest:abc")
	if used != 0 || historyLen != 0 {
		t.Errorf("usage = %d, history = %d; failed analyses must not consume quota or history", used, historyLen)
	}
}

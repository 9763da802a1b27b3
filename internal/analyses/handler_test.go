package analyses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"chartlens-backend/internal/history"
	"chartlens-backend/internal/shared/storage/localdb"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/vision"
)

func newTestRouter(t *testing.T, v *fakeVision, limit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	svc := NewService(client, usageSvc, historySvc, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userId", "guest:test")
		c.Set("isGuest", true)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postAnalyze(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAnalyzeEndpointValid(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true,"signal":"BULLISH"}`)}
	r := newTestRouter(t, v, 999)

	body, _ := json.Marshal(map[string]string{"image": chartDataURI(t)})
	w := postAnalyze(r, string(body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["isValid"] != true || resp["signal"] != "BULLISH" {
		t.Errorf("response = %v", resp)
	}
	if w.Header().Get("X-Analysis-Id") == "" {
		t.Error("expected X-Analysis-Id header")
	}
}

func TestAnalyzeEndpointRejectionShapes(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	r := newTestRouter(t, v, 999)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing image", `{}`, http.StatusBadRequest},
		{"non-string image", `{"image":12345}`, http.StatusBadRequest},
		{"unsupported format", `{"image":"data:application/pdf;base64,AAAA"}`, http.StatusBadRequest},
		{"not json", `not json at all`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postAnalyze(r, tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tc.wantStatus, w.Body.String())
			}
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp["isValid"] != false {
				t.Errorf("expected isValid:false shape, got %v", resp)
			}
			if reason, _ := resp["reason"].(string); reason == "" {
				t.Error("expected a reason")
			}
		})
	}

	if v.calls != 0 {
		t.Errorf("vision calls = %d, want 0", v.calls)
	}
}

func TestAnalyzeEndpointOversized(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	r := newTestRouter(t, v, 999)

	oversized := `{"image":"data:image/png;base64,` + strings.Repeat("A", 7*1024*1024) + `"}`
	w := postAnalyze(r, oversized)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
	if v.calls != 0 {
		t.Errorf("vision calls = %d, want 0", v.calls)
	}
}

func TestAnalyzeEndpointQuotaExhausted(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":true}`)}
	r := newTestRouter(t, v, 1)

	body, _ := json.Marshal(map[string]string{"image": chartDataURI(t)})
	if w := postAnalyze(r, string(body)); w.Code != http.StatusOK {
		t.Fatalf("first status = %d", w.Code)
	}

	w := postAnalyze(r, string(body))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] != "limit_reached" {
		t.Errorf("error = %v, want limit_reached", resp["error"])
	}
}

func TestAnalyzeEndpointUnconfigured(t *testing.T) {
	r := newTestRouter(t, nil, 999)

	body, _ := json.Marshal(map[string]string{"image": chartDataURI(t)})
	w := postAnalyze(r, string(body))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body = %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeEndpointInvalidModelResult(t *testing.T) {
	v := &fakeVision{response: json.RawMessage(`{"isValid":false,"reason":"not a chart","suggestion":"upload a chart"}`)}
	r := newTestRouter(t, v, 999)

	body, _ := json.Marshal(map[string]string{"image": chartDataURI(t)})
	w := postAnalyze(r, string(body))

	// The model's own rejection is a successful HTTP exchange.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["isValid"] != false || resp["reason"] != "not a chart" {
		t.Errorf("response = %v", resp)
	}
}

package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type brokenRepo struct{}

func (brokenRepo) Upsert(ctx context.Context, lead Lead) error { return errors.New("db down") }
func (brokenRepo) Count(ctx context.Context) (int, error)      { return 0, errors.New("db down") }

func newWaitlistRouter(repo Repo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func postWaitlist(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/waitlist", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJoinStoresLead(t *testing.T) {
	repo := NewMemoryRepo()
	r := newWaitlistRouter(repo)

	w := postWaitlist(r, `{"email":"Lead@Example.com","phone":"+33612345678"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	// Duplicate signups don't multiply.
	postWaitlist(r, `{"email":"lead@example.com"}`)
	count, _ = repo.Count(context.Background())
	if count != 1 {
		t.Errorf("count after duplicate = %d, want 1", count)
	}
}

func TestJoinRequiresEmail(t *testing.T) {
	r := newWaitlistRouter(NewMemoryRepo())

	if w := postWaitlist(r, `{"phone":"+33612345678"}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if w := postWaitlist(r, `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJoinSucceedsWhenStorageFails(t *testing.T) {
	r := newWaitlistRouter(brokenRepo{})

	w := postWaitlist(r, `{"email":"lead@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite storage failure", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["success"] != true {
		t.Errorf("response = %v", resp)
	}
}

package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chartlens-backend/internal/vision"
)

func completionBody(content string) string {
	payload := map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  DefaultModel,
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func TestNewReturnsNilWithoutAPIKey(t *testing.T) {
	if c := New(Options{}); c != nil {
		t.Fatal("expected nil client when no API key is set")
	}
}

func TestAnalyzeNotConfigured(t *testing.T) {
	var c *Client
	_, err := c.Analyze(context.Background(), vision.AnalyzeInput{})
	if err != vision.ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAnalyzeSendsPromptAndImage(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody(`{"isValid":true,"signal":"BULLISH"}`)))
	}))
	defer srv.Close()

	c := New(Options{APIKey: "test-key", BaseURL: srv.URL})
	raw, err := c.Analyze(context.Background(), vision.AnalyzeInput{
		ImageDataURI: "data:image/jpeg;base64,AAAA",
		Language:     "fr",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result["signal"] != "BULLISH" {
		t.Errorf("signal = %v, want BULLISH", result["signal"])
	}

	if captured["model"] != DefaultModel {
		t.Errorf("model = %v, want %s", captured["model"], DefaultModel)
	}
	if captured["max_tokens"] != float64(maxTokens) {
		t.Errorf("max_tokens = %v, want %d", captured["max_tokens"], maxTokens)
	}
	rf, _ := captured["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", rf)
	}

	messages, _ := captured["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(messages))
	}
	msg := messages[0].(map[string]any)
	parts, _ := msg["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("content parts = %d, want text + image", len(parts))
	}
	textPart := parts[0].(map[string]any)
	if !strings.Contains(textPart["text"].(string), "isValid") {
		t.Error("expected the prompt to describe the isValid contract")
	}
	imagePart := parts[1].(map[string]any)
	imageURL := imagePart["image_url"].(map[string]any)
	if imageURL["url"] != "data:image/jpeg;base64,AAAA" {
		t.Errorf("image url = %v", imageURL["url"])
	}
}

func TestAnalyzeRejectsNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("sorry, I cannot read this chart")))
	}))
	defer srv.Close()

	c := New(Options{APIKey: "test-key", BaseURL: srv.URL})
	_, err := c.Analyze(context.Background(), vision.AnalyzeInput{ImageDataURI: "data:image/png;base64,AAAA"})
	if err != vision.ErrBadResponse {
		t.Fatalf("err = %v, want ErrBadResponse", err)
	}
}

func TestAnalyzeEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionBody("")))
	}))
	defer srv.Close()

	c := New(Options{APIKey: "test-key", BaseURL: srv.URL})
	_, err := c.Analyze(context.Background(), vision.AnalyzeInput{ImageDataURI: "data:image/png;base64,AAAA"})
	if err != vision.ErrEmptyResponse {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

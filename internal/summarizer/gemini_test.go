package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ryosukesatoh/repost-digest/internal/retry"
)

func TestGeminiGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("Expected key query param, got %q", r.URL.Query().Get("key"))
		}

		body, _ := io.ReadAll(r.Body)
		var req geminiRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("Failed to parse request body: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 || req.Contents[0].Parts[0].Text != "a prompt" {
			t.Errorf("Unexpected request body: %s", body)
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"part one "},{"text":"part two"}]}}]}`))
	}))
	defer ts.Close()

	g := NewGeminiGenerator("test-key", "")
	g.client = ts.Client()
	g.baseURL = ts.URL

	text, err := g.Generate(context.Background(), "a prompt")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "part one part two" {
		t.Errorf("Expected joined candidate parts, got %q", text)
	}
}

func TestGeminiGenerateRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer ts.Close()

	g := NewGeminiGenerator("k", "gemini-1.5-flash")
	g.client = ts.Client()
	g.baseURL = ts.URL

	_, err := g.Generate(context.Background(), "p")
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
	var se *retry.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StatusError, got: %v", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", se.Code)
	}
	if !retry.Retryable(se.Code) {
		t.Error("Expected 429 to classify as retryable")
	}
}

func TestGeminiGenerateEmptyCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer ts.Close()

	g := NewGeminiGenerator("k", "")
	g.client = ts.Client()
	g.baseURL = ts.URL

	if _, err := g.Generate(context.Background(), "p"); err == nil {
		t.Fatal("Expected error for empty candidates")
	}
}

package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAITranslateSendsChatRequestAndExtractsSQL(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT 1;\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "gpt-5-mini", Temperature: 0.2})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}

	prompt, err := BuildPrompt("what is one", "")
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), prompt)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPayload["model"] != "gpt-5-mini" {
		t.Fatalf("model = %v", gotPayload["model"])
	}
	messages, ok := gotPayload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %#v", gotPayload["messages"])
	}
	if result.SQL != "SELECT 1" {
		t.Fatalf("SQL = %q", result.SQL)
	}
	if result.Provider != "openai-compatible" || result.Model != "gpt-5-mini" {
		t.Fatalf("provenance = %q/%q", result.Provider, result.Model)
	}
}

func TestOpenAITranslateRejectsNonSQLContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I'm sorry, I cannot help with that."}}]}`))
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	_, err = translator.Translate(context.Background(), Prompt{System: "s", User: "u"})
	if !errors.Is(err, ErrNoSQL) {
		t.Fatalf("Translate() error = %v, want ErrNoSQL", err)
	}
}

func TestOpenAITranslateSurfacesHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Prompt{System: "s", User: "u"}); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestOpenAITranslateFailsOnEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Prompt{System: "s", User: "u"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAITranslateHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := translator.Translate(ctx, Prompt{System: "s", User: "u"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Translate() error = %v, want DeadlineExceeded", err)
	}
}

func TestNewOpenAITranslatorRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestNewOpenAITranslatorDefaults(t *testing.T) {
	translator, err := NewOpenAITranslator(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if translator.baseURL != defaultOpenAIBaseURL {
		t.Fatalf("baseURL = %q", translator.baseURL)
	}
	if translator.model != "gpt-5" {
		t.Fatalf("model = %q", translator.model)
	}
}

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

func completion(content string) completionResponse {
	return completionResponse{Choices: []completionChoice{{
		Message:      message{Role: "assistant", Content: content},
		FinishReason: "stop",
	}}}
}

func makeTestServer(t *testing.T, statusCode int, header http.Header, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete_ReturnsMessageContent(t *testing.T) {
	srv := makeTestServer(t, http.StatusOK, nil, completion(`{"seniority":"senior"}`))

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", srv.Client())
	got, err := provider.Complete(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"seniority":"senior"}` {
		t.Errorf("got %q, want json string", got)
	}
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		wantDelay  time.Duration
	}{
		{"server error", http.StatusInternalServerError, "", 0},
		{"rate limited with retry-after", http.StatusTooManyRequests, "7", 7 * time.Second},
		{"rate limited with http-date", http.StatusTooManyRequests, "Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.retryAfter != "" {
				header.Set("Retry-After", tt.retryAfter)
			}
			srv := makeTestServer(t, tt.status, header, map[string]string{"error": "nope"})

			provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", srv.Client())
			_, err := provider.Complete(context.Background(), "analyze this")

			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if se.StatusCode != tt.status || se.RetryAfter != tt.wantDelay {
				t.Errorf("StatusError = %+v, want status %d retry-after %v", se, tt.status, tt.wantDelay)
			}
		})
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := makeTestServer(t, http.StatusOK, nil, completionResponse{})

	provider := NewOpenAIProvider(srv.URL, "test-key", "test-model", srv.Client())
	if _, err := provider.Complete(context.Background(), "analyze this"); err == nil {
		t.Fatal("expected error when LLM returns no choices")
	}
}

func TestComplete_TruncatedReply(t *testing.T) {
	resp := completion(`{"seniority":"sen`)
	resp.Choices[0].FinishReason = "length"
	srv := makeTestServer(t, http.StatusOK, nil, resp)

	provider := NewOpenAIProvider(srv.URL+"/", "test-key", "test-model", srv.Client())
	if _, err := provider.Complete(context.Background(), "analyze this"); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestComplete_SendsStructuredRequest(t *testing.T) {
	var gotReq completionRequest
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completion("{}"))
	}))
	defer srv.Close()

	provider := NewOpenAIProvider(srv.URL, "my-secret-key", "gpt-4o-mini", srv.Client())
	if _, err := provider.Complete(context.Background(), "analyze this"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer my-secret-key" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" || gotReq.Temperature != 0 {
		t.Errorf("model/temperature = %q/%v", gotReq.Model, gotReq.Temperature)
	}
	if gotReq.ResponseFormat.Type != "json_schema" || gotReq.ResponseFormat.JSONSchema.Name != "job_insights" {
		t.Errorf("response_format = %+v", gotReq.ResponseFormat)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "analyze this" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestInsightsSchema_RequiresEveryField(t *testing.T) {
	schema := insightsSchema()
	required, _ := schema["required"].([]string)
	props, _ := schema["properties"].(map[string]any)
	for _, field := range []string{"seniority", "years_exp", "tech_stack", "key_points"} {
		if !slices.Contains(required, field) {
			t.Errorf("%s missing from required", field)
		}
		if _, ok := props[field]; !ok {
			t.Errorf("%s missing from properties", field)
		}
	}
}

package content

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) *GeminiGenerator {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGeminiGeneratorWithClient(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, resty.New(), nil)
	if err != nil {
		t.Fatalf("NewGeminiGeneratorWithClient() error = %v", err)
	}
	return g
}

func TestGeminiGeneratorGenerateSuccess(t *testing.T) {
	t.Parallel()

	var gotReq geminiRequest
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q, want test-key", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"<p>Keep going</p>"},{"text":"<p>You got this</p>"}]}}]}`))
	})

	text, err := g.Generate(context.Background(), domain.PromptMotivational)
	if err != nil {
		t.Fatalf("Generate() unexpected error = %v", err)
	}
	if text != "<p>Keep going</p><p>You got this</p>" {
		t.Fatalf("Generate() = %q", text)
	}

	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("request contents = %+v, want one part", gotReq.Contents)
	}
	if !strings.Contains(gotReq.Contents[0].Parts[0].Text, "motivational") {
		t.Fatalf("prompt = %q, want motivational prompt", gotReq.Contents[0].Parts[0].Text)
	}
}

func TestGeminiGeneratorGenerateFailures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("quota exceeded"))
			},
		},
		{
			name: "no candidates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"candidates":[]}`))
			},
		},
		{
			name: "blank text",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`))
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := newTestGenerator(t, tc.handler)
			_, err := g.Generate(context.Background(), domain.PromptAnniversary)
			if !errors.Is(err, domain.ErrContentGeneration) {
				t.Fatalf("Generate() error = %v, want ErrContentGeneration", err)
			}
		})
	}
}

func TestGeminiGeneratorUnknownKind(t *testing.T) {
	t.Parallel()

	called := false
	g := newTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := g.Generate(context.Background(), domain.PromptKind("limerick"))
	if !errors.Is(err, domain.ErrContentGeneration) {
		t.Fatalf("Generate() error = %v, want ErrContentGeneration", err)
	}
	if called {
		t.Fatal("unknown kind should not reach the API")
	}
}

func TestGeminiGeneratorTransportError(t *testing.T) {
	t.Parallel()

	g, err := NewGeminiGeneratorWithClient(GeminiConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, resty.New(), nil)
	if err != nil {
		t.Fatalf("NewGeminiGeneratorWithClient() error = %v", err)
	}

	_, err = g.Generate(context.Background(), domain.PromptMotivational)
	if !errors.Is(err, domain.ErrContentGeneration) {
		t.Fatalf("Generate() error = %v, want ErrContentGeneration", err)
	}
}

func TestNewGeminiGeneratorRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGeminiGenerator(GeminiConfig{}, nil); err == nil {
		t.Fatal("NewGeminiGenerator() without key expected error")
	}
}

package translator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"layout-translator/internal/document"
)

// mockProviderServer creates a server whose answer is computed from the decoded request
func mockProviderServer(t *testing.T, responseFunc func(req Request) (string, int)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		content, statusCode := responseFunc(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(content))
	}))
	t.Cleanup(server.Close)
	return server
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func TestHTTPTranslator_Translate(t *testing.T) {
	var got Request
	server := mockProviderServer(t, func(req Request) (string, int) {
		got = req
		return `{"success": true, "translated_text": "Hallo Welt"}`, http.StatusOK
	})

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
	out, err := tr.Translate(context.Background(), "Hello world", "English", "de")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hallo Welt" {
		t.Errorf("expected 'Hallo Welt', got %q", out)
	}
	if got.Text != "Hello world" || len(got.Texts) != 0 {
		t.Errorf("unexpected request body: %+v", got)
	}
	if got.SourceLang != "en" || got.TargetLang != "de" {
		t.Errorf("languages not normalized: %s -> %s", got.SourceLang, got.TargetLang)
	}
}

func TestHTTPTranslator_NLLBCodes(t *testing.T) {
	var got Request
	server := mockProviderServer(t, func(req Request) (string, int) {
		got = req
		return `{"translations": ["你好"]}`, http.StatusOK
	})

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL, NLLBCodes: true})
	if _, err := tr.Translate(context.Background(), "Hello", "en", "zh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceLang != "eng_Latn" || got.TargetLang != "zho_Hans" {
		t.Errorf("expected NLLB codes, got %s -> %s", got.SourceLang, got.TargetLang)
	}
}

func TestHTTPTranslator_TranslateBatch(t *testing.T) {
	server := mockProviderServer(t, func(req Request) (string, int) {
		out := make([]string, len(req.Texts))
		for i, text := range req.Texts {
			out[i] = "T(" + text + ")"
		}
		return mustJSON(t, map[string]any{"success": true, "translated_texts": out}), http.StatusOK
	})

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
	out, err := tr.TranslateBatch(context.Background(), []string{"a", "b", "c"}, "en", "zh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"T(a)", "T(b)", "T(c)"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("result %d: expected %q, got %q", i, want[i], out[i])
		}
	}

	out, err = tr.TranslateBatch(context.Background(), nil, "en", "zh")
	if err != nil || out != nil {
		t.Errorf("empty batch should return nil, nil; got %v, %v", out, err)
	}
}

func TestHTTPTranslator_TranslateBatchCountMismatch(t *testing.T) {
	server := mockProviderServer(t, func(req Request) (string, int) {
		return `{"translated_texts": ["only one"]}`, http.StatusOK
	})

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
	_, err := tr.TranslateBatch(context.Background(), []string{"a", "b"}, "en", "zh")
	if !document.IsCode(err, document.ErrCountMismatch) {
		t.Fatalf("expected COUNT_MISMATCH, got %v", err)
	}
}

func TestHTTPTranslator_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, false},
		{"bad request", http.StatusBadRequest, `{"error": "text missing"}`, false},
		{"rate limited", http.StatusTooManyRequests, `{"message": "slow down"}`, true},
		{"unavailable", http.StatusServiceUnavailable, `upstream down`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockProviderServer(t, func(req Request) (string, int) {
				return tt.body, tt.status
			})
			tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
			_, err := tr.Translate(context.Background(), "x", "en", "zh")
			if err == nil {
				t.Fatal("expected error")
			}
			if !document.IsCode(err, document.ErrProvider) {
				t.Errorf("expected PROVIDER_ERROR, got %v", err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Errorf("expected StatusError %d in chain, got %v", tt.status, err)
			}
			if IsRetryable(err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(err), tt.retryable)
			}
		})
	}
}

func TestHTTPTranslator_RejectedIsNotRetryable(t *testing.T) {
	server := mockProviderServer(t, func(req Request) (string, int) {
		return `{"success": false, "error": "unsupported language pair"}`, http.StatusOK
	})

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
	_, err := tr.Translate(context.Background(), "x", "en", "xx")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("explicit rejections must not be retried")
	}
}

func TestHTTPTranslator_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	tr := NewHTTPTranslator(HTTPConfig{URL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Translate(ctx, "x", "en", "zh")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsRetryable(err) {
		t.Errorf("timeouts should be retryable: %v", err)
	}
}

package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"layout-translator/internal/language"
	"layout-translator/internal/logger"
)

// DefaultTimeout is the HTTP client timeout used when none is configured
const DefaultTimeout = 30 * time.Second

// Request is the body sent to the translation endpoint. Exactly one of Text
// and Texts is set.
type Request struct {
	Text       string   `json:"text,omitempty"`
	Texts      []string `json:"texts,omitempty"`
	SourceLang string   `json:"source_lang"`
	TargetLang string   `json:"target_lang"`
}

// HTTPConfig holds options for creating an HTTPTranslator
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// NLLBCodes sends NLLB model codes (eng_Latn) instead of short codes (en)
	NLLBCodes bool
	// Client overrides the default HTTP client
	Client *http.Client
}

// HTTPTranslator calls a JSON translation endpoint
type HTTPTranslator struct {
	url       string
	apiKey    string
	nllbCodes bool
	client    *http.Client
}

// NewHTTPTranslator creates an HTTPTranslator with the given configuration
func NewHTTPTranslator(cfg HTTPConfig) *HTTPTranslator {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTranslator{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		nllbCodes: cfg.NLLBCodes,
		client:    client,
	}
}

// Translate implements Translator
func (t *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	texts, err := t.post(ctx, Request{
		Text:       text,
		SourceLang: t.langCode(sourceLang),
		TargetLang: t.langCode(targetLang),
	})
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", providerError("provider returned no translation", "", nil)
	}
	if len(texts) == 1 {
		return texts[0], nil
	}
	return strings.Join(texts, "\n"), nil
}

// TranslateBatch implements Translator
func (t *HTTPTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := t.post(ctx, Request{
		Texts:      texts,
		SourceLang: t.langCode(sourceLang),
		TargetLang: t.langCode(targetLang),
	})
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, countMismatch(len(texts), len(out))
	}
	return out, nil
}

func (t *HTTPTranslator) langCode(code string) string {
	if t.nllbCodes {
		if nllb, ok := language.NLLBCode(code); ok {
			return nllb
		}
	}
	if norm := language.Normalize(code); norm != "" {
		return norm
	}
	return code
}

func (t *HTTPTranslator) post(ctx context.Context, reqBody Request) ([]string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, providerError("failed to marshal request body", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, providerError("failed to create HTTP request", t.url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, providerError("provider request failed", t.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("failed to read provider response", "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, errorDetails(body))
	}

	shape, texts, err := DecodeResponse(body)
	if err != nil {
		return nil, err
	}
	logger.Debug("provider response decoded",
		logger.String("shape", shape),
		logger.Int("results", len(texts)))
	return texts, nil
}

// errorDetails pulls a message out of an error body, falling back to the raw text
func errorDetails(body []byte) string {
	var errResp struct {
		Error any    `json:"error"`
		Msg   string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch e := errResp.Error.(type) {
		case string:
			return e
		case map[string]any:
			if msg, ok := e["message"].(string); ok {
				return msg
			}
		}
		if errResp.Msg != "" {
			return errResp.Msg
		}
	}
	return truncate(strings.TrimSpace(string(body)), 200)
}

package translator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"layout-translator/internal/document"
)

// decoder recognises one response shape. The schema decides whether the
// shape matches; extract pulls the translations out of a matching body.
type decoder struct {
	name    string
	schema  *jsonschema.Schema
	extract func(body []byte) ([]string, error)
}

const (
	failureSchema = `{
		"type": "object",
		"required": ["success"],
		"properties": {"success": {"const": false}}
	}`
	batchSchema = `{
		"type": "object",
		"required": ["translated_texts"],
		"properties": {"translated_texts": {"type": "array", "items": {"type": "string"}}}
	}`
	singleSchema = `{
		"type": "object",
		"required": ["translated_text"],
		"properties": {"translated_text": {"type": "string"}}
	}`
	translationsSchema = `{
		"type": "object",
		"required": ["translations"],
		"properties": {"translations": {"type": "array", "items": {"type": "string"}}}
	}`
	chatSchema = `{
		"type": "object",
		"required": ["choices"],
		"properties": {
			"choices": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["message"],
					"properties": {
						"message": {
							"type": "object",
							"required": ["content"],
							"properties": {"content": {"type": "string"}}
						}
					}
				}
			}
		}
	}`
	aliSchema = `{
		"type": "object",
		"required": ["Code", "Data"],
		"properties": {
			"Code": {"type": ["string", "integer"]},
			"Data": {
				"type": "object",
				"required": ["Translated"],
				"properties": {"Translated": {"type": "string"}}
			}
		}
	}`
)

// decoders are tried in order; the first structural match wins
var decoders = []decoder{
	{
		name:   "failure",
		schema: jsonschema.MustCompileString("failure.json", failureSchema),
		extract: func(body []byte) ([]string, error) {
			var resp struct {
				Error        string `json:"error"`
				ErrorMessage string `json:"error_message"`
				Message      string `json:"message"`
			}
			_ = json.Unmarshal(body, &resp)
			msg := firstNonEmpty(resp.Error, resp.ErrorMessage, resp.Message, "no reason given")
			return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
		},
	},
	{
		name:   "batch",
		schema: jsonschema.MustCompileString("batch.json", batchSchema),
		extract: func(body []byte) ([]string, error) {
			var resp struct {
				TranslatedTexts []string `json:"translated_texts"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			return resp.TranslatedTexts, nil
		},
	},
	{
		name:   "single",
		schema: jsonschema.MustCompileString("single.json", singleSchema),
		extract: func(body []byte) ([]string, error) {
			var resp struct {
				TranslatedText string `json:"translated_text"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			return []string{resp.TranslatedText}, nil
		},
	},
	{
		name:   "translations",
		schema: jsonschema.MustCompileString("translations.json", translationsSchema),
		extract: func(body []byte) ([]string, error) {
			var resp struct {
				Translations []string `json:"translations"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			return resp.Translations, nil
		},
	},
	{
		name:   "chat",
		schema: jsonschema.MustCompileString("chat.json", chatSchema),
		extract: func(body []byte) ([]string, error) {
			var resp ChatCompletionResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			if resp.Error != nil {
				return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Error.Message)
			}
			return []string{resp.Choices[0].Message.Content}, nil
		},
	},
	{
		name:   "ali",
		schema: jsonschema.MustCompileString("ali.json", aliSchema),
		extract: func(body []byte) ([]string, error) {
			var resp struct {
				Code    json.RawMessage `json:"Code"`
				Message string          `json:"Message"`
				Data    struct {
					Translated string `json:"Translated"`
				} `json:"Data"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			if code := strings.Trim(string(resp.Code), `"`); code != "200" {
				return nil, fmt.Errorf("%w: code %s: %s", ErrRejected, code, resp.Message)
			}
			return []string{resp.Data.Translated}, nil
		},
	},
}

// ChatCompletionResponse is the subset of an OpenAI chat completion answer
// the chat decoder reads
type ChatCompletionResponse struct {
	ID      string    `json:"id,omitempty"`
	Model   string    `json:"model,omitempty"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice is one completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Message is a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// APIError is an error object embedded in a chat completion answer
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// DecodeResponse extracts translations from a provider answer. It returns the
// name of the matching decoder along with the texts.
func DecodeResponse(body []byte) (string, []string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil, providerError("empty provider response", "", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return "", nil, providerError("provider response is not JSON", truncate(string(trimmed), 200), err)
	}

	for _, d := range decoders {
		if err := d.schema.Validate(value); err != nil {
			continue
		}
		texts, err := d.extract(trimmed)
		if err != nil {
			return d.name, nil, providerError("provider returned an error", d.name, err)
		}
		return d.name, texts, nil
	}
	return "", nil, providerError("unrecognised provider response", truncate(string(trimmed), 200), nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// countMismatch reports a batch answer with the wrong number of results
func countMismatch(want, got int) error {
	return document.NewErrorWithDetails(document.ErrCountMismatch, "batch result count mismatch",
		fmt.Sprintf("expected %d, got %d", want, got), nil)
}

package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"layout-translator/internal/language"
	"layout-translator/internal/logger"
)

// DefaultModel is the chat model used when none is configured
const DefaultModel = "gpt-4o-mini"

// LLMConfig holds options for creating an LLMTranslator
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMTranslator translates through an OpenAI-compatible chat model
type LLMTranslator struct {
	chat model.BaseChatModel
}

// NewLLMTranslator creates the chat model client and wraps it
func NewLLMTranslator(ctx context.Context, cfg LLMConfig) (*LLMTranslator, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	temperature := float32(0.3)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       modelName,
		APIKey:      cfg.APIKey,
		Timeout:     timeout,
		Temperature: &temperature,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, providerError("failed to create chat model", modelName, err)
	}
	return NewLLMTranslatorWithModel(chatModel), nil
}

// NewLLMTranslatorWithModel wraps an existing chat model
func NewLLMTranslatorWithModel(chat model.BaseChatModel) *LLMTranslator {
	return &LLMTranslator{chat: chat}
}

// Translate implements Translator
func (t *LLMTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return t.generate(ctx, text, sourceLang, targetLang)
}

// TranslateBatch joins texts with Separator and asks the model to keep it
func (t *LLMTranslator) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out, err := t.generate(ctx, strings.Join(texts, Separator), sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(out, strings.TrimSpace(Separator))
	if len(parts) != len(texts) {
		return nil, countMismatch(len(texts), len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func (t *LLMTranslator) generate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(sourceLang, targetLang)),
		schema.UserMessage(text),
	}

	resp, err := t.chat.Generate(ctx, messages)
	if err != nil {
		logger.Debug("chat model call failed", logger.Err(err))
		return "", providerError("chat model call failed", "", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", providerError("chat model returned no content", "", nil)
	}
	return strings.TrimSpace(resp.Content), nil
}

func languageName(code string) string {
	if l, ok := language.Lookup(code); ok {
		return l.Name
	}
	return code
}

func buildSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a professional translator working on text extracted from laid-out documents.
Translate the user's text from %s to %s.

RULES:
1. Output only the translation, without explanations or notes.
2. Preserve numbers, formulas, symbols and product names exactly.
3. Keep the translation about as long as the original; it must fit the same space on the page.
4. The input may contain several segments separated by the line "%s".
   Translate each segment independently and keep every separator line in your output.`,
		languageName(sourceLang), languageName(targetLang), strings.TrimSpace(Separator))
}

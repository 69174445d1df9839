// Package translate is a thin pass-through to a remote text-completion
// engine. The only structural requirement is that line breaks and
// "[HH:MM:SS - HH:MM:SS]" prefixes survive translation untouched.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-scribe/internal/apierr"
)

// DefaultModel is the chat model used for translation.
const DefaultModel = openai.GPT4oMini

// systemPrompt instructs the model to translate without disturbing the
// transcript's line and timestamp structure.
const systemPrompt = `You are a translator. Translate the user's transcript into %s.
Keep every line break exactly where it is. If a line starts with a bracketed
timestamp range like "[00:12:03 - 00:12:07]", copy that prefix verbatim and
translate only the text after it. Output nothing but the translated transcript.`

// Translator translates transcript text into a target language.
type Translator interface {
	Translate(ctx context.Context, transcript, targetLang string) (string, error)
}

// chatClient is the slice of the OpenAI client this adapter needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Translator = (*OpenAITranslator)(nil)
	_ chatClient = (*openai.Client)(nil)
)

// OpenAITranslator translates text via OpenAI chat completions.
type OpenAITranslator struct {
	client chatClient
	model  string
}

// Option configures an OpenAITranslator.
type Option func(*OpenAITranslator)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(t *OpenAITranslator) {
		t.model = model
	}
}

// NewOpenAITranslator creates a translator around the given client.
func NewOpenAITranslator(client chatClient, opts ...Option) *OpenAITranslator {
	t := &OpenAITranslator{
		client: client,
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate returns the transcript translated into targetLang.
// Empty transcripts pass through without a remote call.
func (t *OpenAITranslator) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return transcript, nil
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: 0, // deterministic output for reproducibility
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, targetLang)},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from API")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyError maps OpenAI API errors to apierr sentinels.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout) // retryable server error
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}

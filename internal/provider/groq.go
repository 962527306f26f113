package provider

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1/"

// Fixed generation parameters. These are configuration constants, not
// request inputs.
const (
	defaultModel = "moonshotai/kimi-k2-instruct"

	completionTemperature = 0.6
	completionTopP        = 0.9
	completionMaxTokens   = 4000

	titleTemperature = 0.5
	titleMaxTokens   = 50
)

const systemPrompt = `You are a helpful AI assistant. You can help with a wide variety of tasks including:

- Answering questions on various topics
- Helping with programming and development
- Providing explanations and tutorials
- Assisting with problem-solving
- Creative writing and brainstorming
- General conversation and support

Please be helpful, accurate, and provide clear explanations. If you're unsure about something, let the user know. Provide code examples when relevant and helpful.`

const titlePrompt = `Create a short, concise title (maximum 6 words) for a conversation based on the user's first message. The title should capture the main topic or theme of the question.`

// SystemPrompt returns the fixed system instruction sent with every turn.
func SystemPrompt() string {
	return systemPrompt
}

// Groq is a Completer backed by the Groq chat completions API.
type Groq struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewGroq creates a Groq completion client. baseURL falls back to
// DefaultBaseURL when empty.
func NewGroq(apiKey, baseURL string, logger *slog.Logger) *Groq {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)

	return &Groq{
		client: client,
		model:  defaultModel,
		logger: logger,
	}
}

// Complete requests a whole response, blocking until the remote call finishes.
func (g *Groq) Complete(ctx context.Context, messages []Message) (string, error) {
	chat, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.F(g.model),
		Messages:    openai.F(toOpenAI(messages)),
		Temperature: openai.Float(completionTemperature),
		TopP:        openai.Float(completionTopP),
		MaxTokens:   openai.Int(completionMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}

	return chat.Choices[0].Message.Content, nil
}

// StreamComplete requests an incremental response. Iterating the returned
// sequence is the only point that blocks on network I/O.
func (g *Groq) StreamComplete(ctx context.Context, messages []Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:       openai.F(g.model),
			Messages:    openai.F(toOpenAI(messages)),
			Temperature: openai.Float(completionTemperature),
			TopP:        openai.Float(completionTopP),
			MaxTokens:   openai.Int(completionMaxTokens),
		})
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				g.logger.Debug("failed to close completion stream", "error", closeErr)
			}
		}()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("chat completion stream failed: %w", err))
		}
	}
}

// GenerateTitle produces a short conversation title from the first user
// message. A degenerate single-turn completion with its own parameters.
func (g *Groq) GenerateTitle(ctx context.Context, firstMessage string) (string, error) {
	chat, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(g.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(titlePrompt),
			openai.UserMessage(firstMessage),
		}),
		Temperature: openai.Float(titleTemperature),
		MaxTokens:   openai.Int(titleMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("title completion failed: %w", err)
	}

	if len(chat.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	title := strings.TrimSpace(chat.Choices[0].Message.Content)
	if title == "" {
		return "", ErrEmptyCompletion
	}

	return title, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

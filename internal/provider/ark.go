package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/parley-app/parley/internal/model/chat"
)

const arkSystemPrompt = "You are a helpful assistant. Answer the user clearly and concisely."

// ArkConfig carries the credentials and model selection for the Ark
// provider.
type ArkConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Ark talks to the Ark LLM service through an eino prompt-template + chat
// model chain, compiled once at construction.
type Ark struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewArk builds and compiles the completion chain.
func NewArk(ctx context.Context, cfg ArkConfig) (*Ark, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, errors.New("ark provider requires ARK_API_KEY and ARK_MODEL")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile completion chain: %w", err)
	}

	return &Ark{runnable: runnable}, nil
}

func (a *Ark) Name() string { return "ark" }

func (a *Ark) Complete(ctx context.Context, turns []Turn) (string, error) {
	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	response, err := a.runnable.Invoke(ctx, map[string]any{
		"system":  arkSystemPrompt,
		"history": history,
	})
	if err != nil {
		return "", classifyArkError(err)
	}
	return response.Content, nil
}

// classifyArkError folds provider-specific failures into the adapter error
// taxonomy. Context errors pass through untouched so cancellation stays
// distinguishable upstream.
func classifyArkError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection re"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"):
		return Transient(err)
	case strings.Contains(msg, "400"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "404"),
		strings.Contains(msg, "invalid"):
		return BadRequest(err)
	default:
		return Unknown(err)
	}
}

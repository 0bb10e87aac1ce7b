package extract

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/providers"
)

// Extractor runs classification passes over a conversation. Extraction is a
// background concern layered on top of chat: a failed pass must never break
// the conversation, so the Extract methods absorb provider and parse errors
// and hand back the empty shape instead.
type Extractor struct {
	provider    providers.LLMProvider
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// Options configures an Extractor. Zero values fall back to the provider's
// default model, temperature 0.3, 2048 tokens and a 30s bound per pass.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Logger      *zap.Logger
}

func New(provider providers.LLMProvider, opts Options) *Extractor {
	if opts.Temperature <= 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Extractor{
		provider:    provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
	}
}

// ExtractPara classifies the conversation into a PARA batch. A provider
// failure or unusable reply yields an empty batch, never an error.
func (e *Extractor) ExtractPara(ctx context.Context, messages []para.Message) para.Batch {
	raw, ok := e.complete(ctx, paraSystemPrompt, messages)
	if !ok {
		return para.Batch{}
	}
	return normalizePara(raw)
}

// ExtractTasks pulls actionable tasks out of the conversation. Same error
// posture as ExtractPara: failures yield an empty slice.
func (e *Extractor) ExtractTasks(ctx context.Context, messages []para.Message) []para.Task {
	raw, ok := e.complete(ctx, tasksSystemPrompt, messages)
	if !ok {
		return nil
	}
	return normalizeTasks(raw)
}

func (e *Extractor) complete(ctx context.Context, systemPrompt string, messages []para.Message) (string, bool) {
	if e == nil || e.provider == nil {
		return "", false
	}
	if len(messages) == 0 {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := make([]providers.Message, 0, len(messages)+1)
	prompt = append(prompt, providers.Message{Role: "system", Content: systemPrompt})
	for _, m := range messages {
		prompt = append(prompt, providers.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := e.provider.Chat(ctx, prompt, e.model, map[string]interface{}{
		"temperature": e.temperature,
		"max_tokens":  e.maxTokens,
	})
	if err != nil {
		e.logger.Warn("classification call failed", zap.Error(err))
		return "", false
	}
	return resp.Content, true
}

package template

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmorganca/ollama/api"

	"github.com/h-yaginuma0326/Qscan/internal/common"
)

// OllamaGenerator targets a locally hosted model through the Ollama chat API.
// Only an endpoint and a model name are required; no key is involved.
type OllamaGenerator struct {
	cfg    common.LLMConfig
	logger *slog.Logger
}

func NewOllamaGenerator(cfg common.LLMConfig, logger *slog.Logger) *OllamaGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaGenerator{cfg: cfg, logger: logger}
}

func (g *OllamaGenerator) Generate(ctx context.Context, analysis map[string]any) (string, error) {
	if g.cfg.OllamaEndpoint == "" || g.cfg.OllamaModel == "" {
		return "", common.WrapError(common.ErrConfiguration, "ollama endpoint and model are both required")
	}

	analysisJSON, err := serializeAnalysis(analysis)
	if err != nil {
		return "", err
	}

	parsed, err := url.Parse(g.cfg.OllamaEndpoint)
	if err != nil {
		return "", common.WrapError(common.ErrConfiguration, "invalid ollama endpoint: "+err.Error())
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	client := api.NewClient(base, http.DefaultClient)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
	}

	start := time.Now()
	streamFalse := false
	req := &api.ChatRequest{
		Model: g.cfg.OllamaModel,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(analysisJSON)},
		},
		Stream: &streamFalse,
	}

	var content string
	err = client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content = resp.Message.Content
		return nil
	})
	if err != nil {
		g.logger.Error("template.ollama.chat_error", "model", g.cfg.OllamaModel, "error", err)
		return "", common.WrapError(common.ErrGeneration, err.Error())
	}
	if content == "" {
		return "", common.WrapError(common.ErrGeneration, "empty response from ollama")
	}

	g.logger.Info("template.ollama.ok",
		"model", g.cfg.OllamaModel,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

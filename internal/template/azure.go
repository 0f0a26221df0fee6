package template

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/h-yaginuma0326/Qscan/internal/common"
)

const azureAPIVersion = "2024-02-15-preview"

// AzureGenerator targets a versioned Azure OpenAI chat-completion deployment.
type AzureGenerator struct {
	cfg    common.LLMConfig
	http   *http.Client
	logger *slog.Logger
}

func NewAzureGenerator(cfg common.LLMConfig, logger *slog.Logger) *AzureGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AzureGenerator{
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// SetHTTPClient overrides the transport, used by tests.
func (g *AzureGenerator) SetHTTPClient(h *http.Client) { g.http = h }

func (g *AzureGenerator) Generate(ctx context.Context, analysis map[string]any) (string, error) {
	if g.cfg.AzureEndpoint == "" || g.cfg.AzureKey == "" || g.cfg.AzureDeployment == "" {
		return "", common.WrapError(common.ErrConfiguration, "azure openai endpoint, key and deployment are all required")
	}

	rid := uuid.New().String()
	start := time.Now()

	analysisJSON, err := serializeAnalysis(analysis)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(g.cfg.AzureEndpoint, "/"), g.cfg.AzureDeployment, azureAPIVersion)

	payload := map[string]any{
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt(analysisJSON)},
		},
		"temperature": 0.1,
		"max_tokens":  2000,
		"top_p":       0.95,
		"stream":      false,
	}

	g.logger.Info("template.azure.request",
		"req_id", rid,
		"deployment", g.cfg.AzureDeployment,
		"analysis_bytes", len(analysisJSON),
	)

	raw, err := g.post(ctx, url, payload)
	if err != nil {
		g.logger.Error("template.azure.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.WrapError(common.ErrGeneration, err.Error())
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", common.WrapError(common.ErrGeneration, fmt.Sprintf("decode azure response: %v", err))
	}
	if len(cc.Choices) == 0 {
		return "", common.WrapError(common.ErrGeneration, "no choices in azure response")
	}

	g.logger.Info("template.azure.ok",
		"req_id", rid,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cc.Choices[0].Message.Content, nil
}

func (g *AzureGenerator) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", g.cfg.AzureKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			g.logger.Warn("azure response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("azure status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

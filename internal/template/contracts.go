// Package template turns the opaque analysis tree into an editable clinical
// note. Providers differ only in transport; the two logical messages are the
// same everywhere.
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/h-yaginuma0326/Qscan/internal/common"
)

// Generator is the interface the pipeline depends on. Output is free-form
// text and regeneration is expected to be non-deterministic in content.
type Generator interface {
	Generate(ctx context.Context, analysis map[string]any) (string, error)
}

// NewGenerator selects a provider from configuration. Selection is a runtime
// value, not a compile-time choice.
func NewGenerator(cfg common.LLMConfig, logger *slog.Logger) (Generator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case common.ProviderAzure:
		return NewAzureGenerator(cfg, logger), nil
	case common.ProviderOllama:
		return NewOllamaGenerator(cfg, logger), nil
	default:
		return nil, common.WrapError(common.ErrConfiguration, fmt.Sprintf("unknown llm provider %q", cfg.Provider))
	}
}

// serializeAnalysis renders the analysis tree for embedding in the user
// message.
func serializeAnalysis(analysis map[string]any) (string, error) {
	b, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return "", common.WrapError(common.ErrGeneration, fmt.Sprintf("serialize analysis: %v", err))
	}
	return string(b), nil
}

// Package repository persists the session artifact bundle locally so a
// restart lands back on the same derived stage.
package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	_ "modernc.org/sqlite"

	"github.com/h-yaginuma0326/Qscan/internal/pipeline"
)

// DefaultSessionID is the singleton session of a single-document device.
const DefaultSessionID = "current"

// SessionRepository stores artifact bundles in a local SQLite file.
type SessionRepository struct {
	db     *sql.DB
	schema *jsonschema.Schema
	logger *slog.Logger
}

const createTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL,
	bundle     BLOB NOT NULL
);`

// Open opens (creating if needed) the session database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SessionRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	schema, err := compileBundleSchema()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("repository.open", "path", path)
	return &SessionRepository{db: db, schema: schema, logger: logger}, nil
}

func (r *SessionRepository) Close() error {
	return r.db.Close()
}

// Save serializes and upserts the bundle.
func (r *SessionRepository) Save(ctx context.Context, id string, a pipeline.Artifacts) error {
	start := time.Now()
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, updated_at, bundle) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, bundle = excluded.bundle`,
		id, time.Now().UTC().Format(time.RFC3339), raw)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	r.logger.Info("repository.save.ok",
		"session_id", id,
		"stage", pipeline.DeriveStage(&a),
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Load returns the stored bundle, or (nil, nil) when none exists. The stored
// JSON is validated against the bundle schema before it is trusted; the stage
// is re-derived by the caller from artifact presence, never read from disk.
func (r *SessionRepository) Load(ctx context.Context, id string) (*pipeline.Artifacts, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT bundle FROM sessions WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if err := r.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("stored session does not match schema: %w", err)
	}

	var a pipeline.Artifacts
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	r.logger.Info("repository.load.ok", "session_id", id, "stage", pipeline.DeriveStage(&a))
	return &a, nil
}

// Delete removes a stored session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// bundleSchema guards against a corrupt or foreign file masquerading as a
// session store. Byte fields arrive as base64 strings in JSON.
func bundleSchema() map[string]any {
	b64 := map[string]any{"type": "string"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"source_image":        b64,
			"source_width":        map[string]any{"type": "integer", "minimum": 0},
			"source_height":       map[string]any{"type": "integer", "minimum": 0},
			"acquired_at":         map[string]any{"type": "string"},
			"masked_image":        b64,
			"masked_content_type": map[string]any{"type": "string"},
			"analysis_result":     map[string]any{"type": "object"},
			"analysis_status":     map[string]any{"enum": []any{"idle", "loading", "success", "error"}},
			"analysis_error":      map[string]any{"type": "string"},
			"generated_template":  map[string]any{"type": "string"},
			"edited_template":     map[string]any{"type": "string"},
			"regions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"id", "x", "y", "width", "height"},
					"properties": map[string]any{
						"id":     map[string]any{"type": "string", "minLength": 1},
						"x":      map[string]any{"type": "number"},
						"y":      map[string]any{"type": "number"},
						"width":  map[string]any{"type": "number", "exclusiveMinimum": 0},
						"height": map[string]any{"type": "number", "exclusiveMinimum": 0},
					},
				},
			},
		},
	}
}

func compileBundleSchema() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(bundleSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("session.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("session.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

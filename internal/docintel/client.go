// Package docintel talks to Azure Document Intelligence: submit the masked
// image, then poll the returned operation until it settles.
package docintel

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

const (
	apiVersion   = "2024-05-01"
	pollInterval = 2 * time.Second
	maxPolls     = 10

	keyHeader = "Ocp-Apim-Subscription-Key"
)

// Config parameterizes the remote analysis endpoint. All three fields are
// required; the client performs no validation beyond non-emptiness.
type Config struct {
	Endpoint string
	ModelID  string
	Key      string
}

// Sleeper lets tests drive the poll loop without real timers.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client is the submit-then-poll analysis client.
type Client struct {
	cfg     Config
	http    *http.Client
	sleeper Sleeper
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSleeper overrides the poll delay mechanism.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 45 * time.Second},
		sleeper: realSleeper{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pollBody struct {
	Status        string         `json:"status"`
	AnalyzeResult map[string]any `json:"analyzeResult"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze submits the image and polls until the operation succeeds, fails, or
// the poll cap is exhausted. On success it returns the service's analyzeResult
// tree, which the pipeline treats as opaque.
func (c *Client) Analyze(ctx context.Context, image []byte, contentType string) (map[string]any, error) {
	if c.cfg.Endpoint == "" || c.cfg.ModelID == "" || c.cfg.Key == "" {
		return nil, common.WrapError(common.ErrConfiguration, "document intelligence endpoint, model id and key are all required")
	}

	rid := uuid.New().String()
	start := time.Now()

	opLocation, err := c.submit(ctx, rid, image, contentType)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxPolls; attempt++ {
		if err := c.sleeper.Sleep(ctx, pollInterval); err != nil {
			return nil, err
		}

		body, err := c.poll(ctx, rid, opLocation)
		if err != nil {
			return nil, err
		}

		switch body.Status {
		case "succeeded":
			c.logger.Info("docintel.analyze.ok",
				"req_id", rid,
				"attempts", attempt,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return body.AnalyzeResult, nil
		case "failed":
			reason := "document analysis failed"
			if body.Error != nil && body.Error.Message != "" {
				reason = body.Error.Message
			}
			c.logger.Error("docintel.analyze.failed", "req_id", rid, "reason", reason)
			return nil, common.WrapError(common.ErrAnalysisFailed, reason)
		default:
			c.logger.Debug("docintel.analyze.pending", "req_id", rid, "status", body.Status, "attempt", attempt)
		}
	}

	c.logger.Error("docintel.analyze.timeout",
		"req_id", rid,
		"attempts", maxPolls,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil, common.WrapError(common.ErrAnalysisTimeout, fmt.Sprintf("no terminal status after %d polls", maxPolls))
}

// submit starts the analysis and returns the operation location to poll.
func (c *Client) submit(ctx context.Context, rid string, image []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url := fmt.Sprintf("%s/documentModels/%s:analyze?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.ModelID, apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return "", common.WrapError(common.ErrSubmission, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(keyHeader, c.cfg.Key)

	c.logger.Info("docintel.submit",
		"req_id", rid,
		"model_id", c.cfg.ModelID,
		"content_type", contentType,
		"bytes", len(image),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", common.WrapError(common.ErrSubmission, err.Error())
	}
	defer closeBody(resp.Body, c.logger, rid)

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(resp.Body)
		c.logger.Error("docintel.submit.rejected", "req_id", rid, "status", resp.StatusCode, "body", string(raw))
		return "", common.WrapError(common.ErrSubmission, fmt.Sprintf("status %d", resp.StatusCode))
	}

	opLocation := resp.Header.Get("Operation-Location")
	if opLocation == "" {
		c.logger.Error("docintel.submit.no_operation_location", "req_id", rid)
		return "", common.WrapError(common.ErrSubmission, "no operation location returned")
	}
	return opLocation, nil
}

// poll fetches the operation state. Failures here are transport errors, not
// rejections of the already-accepted submission, so they carry no error kind.
func (c *Client) poll(ctx context.Context, rid, opLocation string) (*pollBody, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLocation, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set(keyHeader, c.cfg.Key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll analysis operation: %w", err)
	}
	defer closeBody(resp.Body, c.logger, rid)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	var body pollBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &body, nil
}

func closeBody(body io.ReadCloser, logger *slog.Logger, rid string) {
	if err := body.Close(); err != nil {
		logger.Warn("docintel.response_body_close_error", "req_id", rid, "error", err)
	}
}

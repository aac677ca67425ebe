package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"galley/internal/doc"
)

// HTTPGenerator calls a JSON render endpoint. Transient failures (429,
// 5xx, network errors) are retried with backoff; the response envelope
// is schema-validated before its content is trusted.
type HTTPGenerator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
	stats      *CallStats
}

func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPGenerator{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		retryDelay: time.Second,
		stats:      NewCallStats(time.Hour),
	}
}

type renderBlock struct {
	Kind  string `json:"kind"`
	Level int    `json:"level,omitempty"`
	Text  string `json:"text"`
	Page  int    `json:"page,omitempty"`
}

type renderRequest struct {
	Unit         string           `json:"unit"`
	ChapterID    string           `json:"chapter_id"`
	Page         int              `json:"page,omitempty"`
	Title        string           `json:"title,omitempty"`
	Format       string           `json:"format"`
	MarkerClass  string           `json:"marker_class,omitempty"`
	Continuation bool             `json:"continuation,omitempty"`
	Directives   []string         `json:"directives"`
	Feedback     string           `json:"feedback,omitempty"`
	Blocks       []renderBlock    `json:"blocks"`
	Attachments  []doc.Attachment `json:"attachments,omitempty"`
}

type renderEnvelope struct {
	Format  string `json:"format"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

const envelopeSchema = `{
	"type": "object",
	"required": ["format", "content"],
	"properties": {
		"format": {"type": "string", "enum": ["html", "markdown", "text"]},
		"content": {"type": "string", "minLength": 1},
		"model": {"type": "string"},
		"error": {"type": "string"}
	}
}`

var envelopeValidator = jsonschema.MustCompileString("envelope.json", envelopeSchema)

// Render produces one candidate rendering for the request.
func (g *HTTPGenerator) Render(ctx context.Context, req Request) (*Rendering, error) {
	var rendering *Rendering
	err := retry.Do(
		func() error {
			r, err := g.renderOnce(ctx, req)
			if err != nil {
				return err
			}
			rendering = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.retryDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return rendering, nil
}

func (g *HTTPGenerator) renderOnce(ctx context.Context, req Request) (*Rendering, error) {
	blocks := make([]renderBlock, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		blocks = append(blocks, renderBlock{
			Kind:  string(b.Kind),
			Level: b.Level,
			Text:  b.Text,
			Page:  b.Page(),
		})
	}
	body, err := json.Marshal(renderRequest{
		Unit:         req.Unit,
		ChapterID:    req.ChapterID,
		Page:         req.Page,
		Title:        req.Title,
		Format:       req.Format,
		MarkerClass:  req.MarkerClass,
		Continuation: req.Continuation,
		Directives:   Directives(req.Format, req.MarkerClass, req.Continuation),
		Feedback:     req.Feedback,
		Blocks:       blocks,
		Attachments:  req.Attachments,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	started := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	elapsed := time.Since(started).Milliseconds()
	if err != nil {
		g.stats.Record(elapsed, true)
		return nil, &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		g.stats.Record(elapsed, true)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		g.stats.Record(elapsed, true)
		return nil, &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		g.stats.Record(elapsed, true)
		return nil, fmt.Errorf("generator status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	g.stats.Record(elapsed, false)

	var envDoc any
	if err := json.Unmarshal(respBody, &envDoc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := envelopeValidator.Validate(envDoc); err != nil {
		return nil, fmt.Errorf("generator envelope: %w", err)
	}
	var env renderEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("generator error: %s", env.Error)
	}

	return &Rendering{
		Format:  env.Format,
		Content: stripCodeBlock(env.Content),
	}, nil
}

// Stats reports recent call latencies and failures.
func (g *HTTPGenerator) Stats() CallSnapshot {
	return g.stats.Snapshot()
}

// Close releases resources.
func (g *HTTPGenerator) Close() {
	g.httpClient.CloseIdleConnections()
}

var codeBlockRe = regexp.MustCompile("(?s)^```[a-z]*\\s*(.*?)\\s*```$")

// stripCodeBlock unwraps content an LLM-backed generator fenced in a
// markdown code block.
func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure worth retrying. A zero
// StatusCode means the request never reached the generator.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"galley/internal/doc"
)

func testGenerator(t *testing.T, handler http.HandlerFunc) *HTTPGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g := NewHTTPGenerator(server.URL, "test-key", time.Second)
	g.retryDelay = time.Millisecond
	t.Cleanup(g.Close)
	return g
}

func sampleRequest() Request {
	return Request{
		Unit:        "ch03",
		ChapterID:   "ch03",
		Title:       "The Market",
		Format:      "html",
		MarkerClass: "chapter-title",
		Blocks: []doc.Block{
			{Kind: doc.KindHeading, Level: 1, Text: "The Market"},
			{Kind: doc.KindParagraph, Text: "Opening paragraph."},
		},
	}
}

func TestHTTPGenerator_Render(t *testing.T) {
	var wire renderRequest
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"format":"html","content":"<h1 class=\"chapter-title\">The Market</h1>"}`)
	})

	rendering, err := g.Render(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendering.Format != "html" {
		t.Errorf("expected html rendering, got %q", rendering.Format)
	}
	if !strings.Contains(rendering.Content, "The Market") {
		t.Errorf("unexpected content: %q", rendering.Content)
	}
	if wire.Unit != "ch03" || wire.Format != "html" {
		t.Errorf("wire request missing unit/format: %+v", wire)
	}
	if len(wire.Blocks) != 2 || wire.Blocks[0].Kind != "heading" {
		t.Errorf("wire request blocks wrong: %+v", wire.Blocks)
	}
	if len(wire.Directives) == 0 {
		t.Error("wire request carries no directives")
	}
}

func TestHTTPGenerator_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"format":"html","content":"<p>ok</p>"}`)
	})

	rendering, err := g.Render(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("render after transient failure: %v", err)
	}
	if rendering.Content != "<p>ok</p>" {
		t.Errorf("unexpected content: %q", rendering.Content)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
	snap := g.Stats()
	if snap.Count != 2 || snap.Failures != 1 {
		t.Errorf("expected 2 samples with 1 failure, got %+v", snap)
	}
}

func TestHTTPGenerator_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	})

	if _, err := g.Render(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client error should not retry, got %d calls", got)
	}
}

func TestHTTPGenerator_RejectsInvalidEnvelope(t *testing.T) {
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"format":"html"}`)
	})

	_, err := g.Render(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "envelope") {
		t.Errorf("expected envelope error, got: %v", err)
	}
}

func TestHTTPGenerator_StripsCodeFence(t *testing.T) {
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		env := map[string]string{
			"format":  "markdown",
			"content": "```markdown\n# The Market\n\nBody.\n```",
		}
		json.NewEncoder(w).Encode(env)
	})

	rendering, err := g.Render(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if rendering.Content != "# The Market\n\nBody." {
		t.Errorf("code fence not stripped: %q", rendering.Content)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&RetryableError{StatusCode: 503}) {
		t.Error("RetryableError must be retryable")
	}
	if !IsRetryable(fmt.Errorf("render: %w", &RetryableError{})) {
		t.Error("wrapped RetryableError must be retryable")
	}
	if IsRetryable(errors.New("permanent")) {
		t.Error("plain error must not be retryable")
	}
}

func TestDirectives_FormatSpecificRules(t *testing.T) {
	html := strings.Join(Directives("html", "chapter-title", false), "\n")
	if !strings.Contains(html, "chapter-title") {
		t.Errorf("html directives missing marker class: %s", html)
	}
	md := strings.Join(Directives("markdown", "", false), "\n")
	if !strings.Contains(md, "level-1 heading") {
		t.Errorf("markdown directives missing heading rule: %s", md)
	}
	for _, format := range []string{"html", "markdown", "text"} {
		if got := len(Directives(format, "", false)); got < 4 {
			t.Errorf("%s: expected at least 4 directives, got %d", format, got)
		}
	}
}

func TestDirectives_ContinuationSuppressesMarker(t *testing.T) {
	for _, format := range []string{"html", "markdown", "text"} {
		joined := strings.Join(Directives(format, "chapter-title", true), "\n")
		if strings.Contains(joined, "exactly once") || strings.Contains(joined, "only level-1") || strings.Contains(joined, "only h1") {
			t.Errorf("%s: continuation directives still demand the marker: %s", format, joined)
		}
		if !strings.Contains(joined, "do not repeat the chapter title") {
			t.Errorf("%s: continuation directives missing the no-repeat rule: %s", format, joined)
		}
	}
}

func TestHTTPGenerator_ContinuationBatchRequest(t *testing.T) {
	var wire renderRequest
	g := testGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"format":"html","content":"<p>Second batch.</p>"}`)
	})

	req := sampleRequest()
	req.Continuation = true
	if _, err := g.Render(context.Background(), req); err != nil {
		t.Fatalf("render: %v", err)
	}

	if !wire.Continuation {
		t.Error("expected continuation flag on the wire")
	}
	joined := strings.Join(wire.Directives, "\n")
	if strings.Contains(joined, "exactly once") {
		t.Errorf("continuation batch still instructed to emit the marker: %s", joined)
	}
	if !strings.Contains(joined, "do not repeat the chapter title") {
		t.Errorf("continuation batch missing the no-repeat rule: %s", joined)
	}
}

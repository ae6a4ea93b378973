package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docstruct/internal/chunker"
)

func chatServer(t *testing.T, status int, content string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		if seen != nil {
			if err := json.NewDecoder(r.Body).Decode(seen); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"type":"busy","message":"try later"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
}

func TestCleanFragment(t *testing.T) {
	var req chatRequest
	srv := chatServer(t, http.StatusOK, "  clean text  ", &req)
	defer srv.Close()

	stats := NewLLMStats(time.Hour)
	c := NewLLMClient(srv.URL+"/v1/", "qwen2.5:7b", "secret", stats)
	defer c.Close()

	out, err := c.CleanFragment(context.Background(), chunker.Fragment{Text: "dirty te-\nxt", First: true})
	if err != nil {
		t.Fatalf("CleanFragment: %v", err)
	}
	if out != "clean text" {
		t.Errorf("expected %q, got %q", "clean text", out)
	}
	if req.Model != "qwen2.5:7b" {
		t.Errorf("expected model in request, got %q", req.Model)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, dropHeadingRule) {
		t.Error("expected heading rule in prompt for the first fragment")
	}
	if !strings.HasSuffix(req.Messages[0].Content, "dirty te-\nxt") {
		t.Error("expected fragment text at the end of the prompt")
	}
	if snap := stats.Snapshot(); snap.Count != 1 || snap.Failures != 0 {
		t.Errorf("expected one successful sample, got %+v", snap)
	}
}

func TestCleanFragment_RetryableStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway} {
		srv := chatServer(t, status, "", nil)
		c := NewLLMClient(srv.URL+"/v1", "m", "secret", nil)

		_, err := c.CleanFragment(context.Background(), chunker.Fragment{Text: "x"})
		var re *RetryableError
		if !errors.As(err, &re) {
			t.Errorf("status %d: expected RetryableError, got %v", status, err)
		} else if re.StatusCode != status {
			t.Errorf("expected status %d, got %d", status, re.StatusCode)
		}
		if c.Stats().Snapshot().Failures != 1 {
			t.Errorf("status %d: expected failure to be recorded", status)
		}
		srv.Close()
	}
}

func TestCleanFragment_ClientErrorNotRetryable(t *testing.T) {
	srv := chatServer(t, http.StatusBadRequest, "", nil)
	defer srv.Close()
	c := NewLLMClient(srv.URL+"/v1", "m", "secret", nil)

	_, err := c.CleanFragment(context.Background(), chunker.Fragment{Text: "x"})
	var re *RetryableError
	if err == nil || errors.As(err, &re) {
		t.Errorf("expected a non-retryable error, got %v", err)
	}
}

func TestExtractTOC(t *testing.T) {
	content := "```json\n" + `{"items":[` +
		`{"title":"Introduction","page":1,"level":1},` +
		`{"title":"  ","page":2,"level":1},` +
		`{"title":"1.1 Overview","page":6,"level":3}` +
		"]}\n```"
	var req chatRequest
	srv := chatServer(t, http.StatusOK, content, &req)
	defer srv.Close()
	c := NewLLMClient(srv.URL+"/v1", "m", "secret", nil)

	seq, err := c.ExtractTOC(context.Background(), "CONTENTS\nIntroduction 1")
	if err != nil {
		t.Fatalf("ExtractTOC: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("expected 2 valid items, got %d", len(seq))
	}
	if seq[1].Title != "1.1 Overview" || seq[1].Level != 2 || *seq[1].Page != 6 {
		t.Errorf("unexpected item %+v", seq[1])
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Error("expected json_object response format")
	}
	if !strings.Contains(req.Messages[0].Content, "CONTENTS\nIntroduction 1") {
		t.Error("expected front matter in prompt")
	}
}

func TestExtractTOC_BadJSON(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "no toc here", nil)
	defer srv.Close()
	c := NewLLMClient(srv.URL+"/v1", "m", "secret", nil)

	if _, err := c.ExtractTOC(context.Background(), "text"); err == nil {
		t.Error("expected parse error")
	}
}

func TestStripCodeBlock(t *testing.T) {
	if got := stripCodeBlock("```\nhello\n```"); got != "hello" {
		t.Errorf("expected %q, got %q", "hello", got)
	}
	if got := stripCodeBlock("  plain "); got != "plain" {
		t.Errorf("expected %q, got %q", "plain", got)
	}
}

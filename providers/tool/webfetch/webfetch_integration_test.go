//go:build integration

package webfetch

import (
	"context"
	"testing"
	"time"
)

// TestFetch_Integration retrieves a real page. No API key required.
func TestFetch_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	page, err := New().Fetch(ctx, "go.dev")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if page.URL == "" {
		t.Error("expected non-empty final URL")
	}
	if page.Markdown == "" {
		t.Error("expected non-empty markdown content")
	}
	t.Logf("Final URL: %s, markdown length: %d", page.URL, len(page.Markdown))
}

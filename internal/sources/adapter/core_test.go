package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

func testCore() *Core {
	cfg := &common.BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute}
	return NewCore("testsource", MethodAPI, cfg, arbor.NewLogger())
}

func TestCoreStats(t *testing.T) {
	c := testCore()

	c.FinishFetch(10)
	c.FinishFetch(5)
	c.RecordError()

	stats := c.Stats(true)
	if stats.Source != "testsource" || stats.Method != MethodAPI {
		t.Errorf("Unexpected identity: %+v", stats)
	}
	if stats.TotalFetched != 15 {
		t.Errorf("Expected 15 fetched, got %d", stats.TotalFetched)
	}
	if stats.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", stats.Errors)
	}
	if stats.LastFetchAt == "" {
		t.Error("Expected last fetch timestamp set")
	}
	if !stats.Enabled {
		t.Error("Expected enabled flag passed through")
	}
}

func TestCoreCallGoesThroughBreaker(t *testing.T) {
	c := testCore()
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := c.Call(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Expected op error passthrough, got %v", err)
		}
	}

	// Threshold reached, the next call must be rejected without running
	ran := false
	err := c.Call(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil || ran {
		t.Errorf("Expected rejection with op not invoked, ran=%v err=%v", ran, err)
	}
}

func TestSnippet(t *testing.T) {
	short := "short description"
	if Snippet(short) != short {
		t.Errorf("Expected short text unchanged")
	}

	long := strings.Repeat("ä", models.SnippetLength+50)
	got := Snippet(long)
	if len([]rune(got)) != models.SnippetLength {
		t.Errorf("Expected rune-cap at %d, got %d", models.SnippetLength, len([]rune(got)))
	}
}

func TestCapTags(t *testing.T) {
	tags := []string{" Go ", "go", "", "Backend", "backend", "GO"}
	got := CapTags(tags)
	if len(got) != 2 || got[0] != "Go" || got[1] != "Backend" {
		t.Errorf("Expected case-insensitive dedupe keeping first spelling, got %v", got)
	}

	var many []string
	for i := 0; i < models.MaxTags+10; i++ {
		many = append(many, strings.Repeat("x", i+1))
	}
	if got := CapTags(many); len(got) != models.MaxTags {
		t.Errorf("Expected cap at %d tags, got %d", models.MaxTags, len(got))
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<p>Build <strong>services</strong> in Go</p>")
	if strings.Contains(got, "<p>") {
		t.Errorf("Expected tags stripped, got %q", got)
	}
	if !strings.Contains(got, "Build") || !strings.Contains(got, "Go") {
		t.Errorf("Expected text content kept, got %q", got)
	}

	plain := "already plain text"
	if HTMLToText(plain) != plain {
		t.Errorf("Expected plain text passthrough")
	}
}

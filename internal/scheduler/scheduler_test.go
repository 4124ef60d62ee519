package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestSpecUsesConfiguredTime(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(context.Background(), nil, 8, 30, log)

	if got := s.Spec(); got != "30 8 * * *" {
		t.Fatalf("unexpected cron spec %q", got)
	}
}

func TestRunJobSkipsTickWhileRunInFlight(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(context.Background(), nil, 8, 0, log)

	// Reaching the nil pipeline would panic, so returning cleanly proves the
	// tick was skipped.
	s.running.Store(true)
	s.runJob()

	if !s.running.Load() {
		t.Fatal("expected the in-flight flag to survive a skipped tick")
	}
}

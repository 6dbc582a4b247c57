package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounceFileEventsBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan FileEvent)
	output := make(chan []string, 1)
	go debounceFileEvents(ctx, input, output, 50*time.Millisecond)

	input <- FileEvent{Path: "skills/b/SKILL.md"}
	input <- FileEvent{Path: "skills/a/SKILL.md"}
	input <- FileEvent{Path: "skills/b/SKILL.md"}

	select {
	case paths := <-output:
		assert.Equal(t, []string{"skills/a/SKILL.md", "skills/b/SKILL.md"}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced batch was not emitted")
	}

	input <- FileEvent{Path: "skills/c/SKILL.md"}
	select {
	case paths := <-output:
		assert.Equal(t, []string{"skills/c/SKILL.md"}, paths)
	case <-time.After(2 * time.Second):
		t.Fatal("second batch was not emitted")
	}
}

func TestDebounceFileEventsStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	input := make(chan FileEvent)
	output := make(chan []string)

	done := make(chan struct{})
	go func() {
		debounceFileEvents(ctx, input, output, time.Hour)
		close(done)
	}()

	input <- FileEvent{Path: "skills/a/SKILL.md"}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.Fail(t, "debouncer did not stop")
	}
}

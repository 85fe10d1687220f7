package watch

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pragmatiks/pragma/internal/testutil"
)

func TestFilesRunsImmediately(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "m.yaml", "a: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Files(ctx, nil, []string{path}, 10*time.Millisecond, func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run never happened")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Files returned %v, want context.Canceled", err)
	}
}

func TestFilesRerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "m.yaml", "a: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32
	firstRun := make(chan struct{})
	go func() {
		Files(ctx, nil, []string{path}, 10*time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 1 {
				close(firstRun)
			}
			return nil
		})
	}()

	select {
	case <-firstRun:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run never happened")
	}

	if err := os.WriteFile(path, []byte("a: 2\n"), 0644); err != nil {
		t.Fatalf("rewriting watched file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("no rerun after change, runs = %d", runs.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestFilesIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	watched := testutil.WriteFile(t, dir, "m.yaml", "a: 1\n")
	sibling := testutil.WriteFile(t, dir, "other.yaml", "b: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var runs atomic.Int32
	firstRun := make(chan struct{})
	go func() {
		Files(ctx, nil, []string{watched}, 10*time.Millisecond, func(context.Context) error {
			if runs.Add(1) == 1 {
				close(firstRun)
			}
			return nil
		})
	}()

	select {
	case <-firstRun:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run never happened")
	}

	if err := os.WriteFile(sibling, []byte("b: 2\n"), 0644); err != nil {
		t.Fatalf("rewriting sibling: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d after sibling change, want 1", got)
	}
}

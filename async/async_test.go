package async

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFiniteCommandRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	cmd := FiniteCommand{
		Interval: 5 * time.Millisecond,
		Runable: func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background()))
	require.Equal(t, 3, attempts)
}

func TestFiniteCommandStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := FiniteCommand{
		Interval: time.Millisecond,
		Runable: func(ctx context.Context) error {
			return errors.New("always failing")
		},
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("command did not stop on cancel")
	}
}

func TestGroupStopAndWait(t *testing.T) {
	g := NewGroup(context.Background())

	started := make(chan struct{})
	g.Add(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	finished := make(chan struct{})
	go func() {
		g.StopAndWait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("group did not unwind")
	}
}

func TestGroupWaitAsync(t *testing.T) {
	g := NewGroup(context.Background())
	g.Add(func(ctx context.Context) error { return nil })

	select {
	case <-g.WaitAsync():
	case <-time.After(time.Second):
		t.Fatal("group did not finish")
	}
}

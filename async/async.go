package async

import (
	"context"
	"sync"
	"time"
)

// Command is a unit of asynchronous work bound to a context.
type Command func(context.Context) error

// FiniteCommand reruns Runable on the given interval until it succeeds or
// the context is cancelled.
type FiniteCommand struct {
	Interval time.Duration
	Runable  func(context.Context) error
}

func (c FiniteCommand) Run(ctx context.Context) error {
	err := c.Runable(ctx)
	if err == nil {
		return nil
	}
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Runable(ctx); err == nil {
				return nil
			}
		}
	}
}

// Group owns a set of commands sharing one cancellation scope. One group is
// created per owning lifecycle and stopped when the owner is torn down.
type Group struct {
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Add spawns cmd inside the group scope.
func (g *Group) Add(cmd Command) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		_ = cmd(g.ctx)
	}()
}

// Stop cancels the scope without waiting.
func (g *Group) Stop() {
	g.cancel()
}

// Wait blocks until every command returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// StopAndWait cancels the scope and waits for commands to unwind.
func (g *Group) StopAndWait() {
	g.cancel()
	g.wg.Wait()
}

// WaitAsync returns a channel closed once all commands returned.
func (g *Group) WaitAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	return done
}

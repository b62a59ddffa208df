package character

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Flusher persists one coalesced batch of field updates for a character.
type Flusher func(ctx context.Context, id uint, updates map[string]any) error

// Coalescer absorbs rapid sheet edits. Each Apply merges into the pending
// batch for that character and restarts its quiet-period timer, so a burst of
// keystrokes ends in one store write. Per character at most one flush is in
// flight at a time; edits arriving during a flight accumulate and are flushed
// again once the flight lands. Reads overlay Pending on top of the stored row
// so the user always sees their own latest edits.
type Coalescer struct {
	mu      sync.Mutex
	quiet   time.Duration
	flush   Flusher
	pending map[uint]*pendingWrite
	wg      sync.WaitGroup
	closed  bool
	logger  *logrus.Logger
}

type pendingWrite struct {
	updates  map[string]any
	flushing map[string]any
	timer    *time.Timer
	inFlight bool
}

// NewCoalescer builds a coalescer flushing through fn after quiet with no new
// edits.
func NewCoalescer(quiet time.Duration, fn Flusher, logger *logrus.Logger) (*Coalescer, error) {
	if fn == nil {
		return nil, eris.New("a flusher is required")
	}
	if quiet <= 0 {
		quiet = 2 * time.Second
	}

	return &Coalescer{
		quiet:   quiet,
		flush:   fn,
		pending: make(map[uint]*pendingWrite),
		logger:  logger,
	}, nil
}

// Apply merges the updates into the character's pending batch. The write
// reaches the store once the quiet period passes without further edits; after
// Close the flush happens synchronously so nothing is lost during shutdown.
func (c *Coalescer) Apply(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.flush(ctx, id, updates)
	}

	p := c.pending[id]
	if p == nil {
		p = &pendingWrite{updates: make(map[string]any)}
		c.pending[id] = p
	}
	for k, v := range updates {
		p.updates[k] = v
	}

	if !p.inFlight {
		c.schedule(id, p)
	}
	c.mu.Unlock()
	return nil
}

// Pending returns the unpersisted updates for a character, both the batch
// currently in flight and edits queued behind it. The result is a copy.
func (c *Coalescer) Pending(id uint) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pending[id]
	if p == nil {
		return nil
	}

	out := make(map[string]any, len(p.flushing)+len(p.updates))
	for k, v := range p.flushing {
		out[k] = v
	}
	for k, v := range p.updates {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Close stops the timers, flushes everything still pending and waits for
// in-flight writes to land. The context bounds the wait.
func (c *Coalescer) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true

	type batch struct {
		id      uint
		updates map[string]any
	}
	var batches []batch
	for id, p := range c.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		if p.inFlight || len(p.updates) == 0 {
			continue
		}
		p.flushing = p.updates
		p.updates = make(map[string]any)
		p.inFlight = true
		batches = append(batches, batch{id: id, updates: p.flushing})
	}
	c.mu.Unlock()

	var firstErr error
	for _, b := range batches {
		if err := c.flush(ctx, b.id, b.updates); err != nil && firstErr == nil {
			firstErr = err
		}
		c.mu.Lock()
		if p := c.pending[b.id]; p != nil {
			p.inFlight = false
			p.flushing = nil
		}
		c.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return firstErr
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "waiting for in-flight character writes")
	}
}

func (c *Coalescer) schedule(id uint, p *pendingWrite) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(c.quiet, func() {
		c.startFlush(id)
	})
}

func (c *Coalescer) startFlush(id uint) {
	c.mu.Lock()
	p := c.pending[id]
	if p == nil || p.inFlight || len(p.updates) == 0 {
		c.mu.Unlock()
		return
	}
	p.flushing = p.updates
	p.updates = make(map[string]any)
	p.inFlight = true
	batch := p.flushing
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		// A failed batch is logged and dropped. Retrying stale field values
		// risks overwriting edits that landed in the meantime; edits queued
		// during the flight still flush normally below.
		err := c.flush(context.Background(), id, batch)
		if err != nil && c.logger != nil {
			c.logger.WithFields(logrus.Fields{"character_id": id, "fields": len(batch)}).
				WithError(err).Error("character flush failed, batch dropped")
		}

		c.mu.Lock()
		p.inFlight = false
		p.flushing = nil
		switch {
		case len(p.updates) == 0:
			delete(c.pending, id)
			c.mu.Unlock()
		case c.closed:
			c.mu.Unlock()
			c.startFlush(id)
		default:
			c.schedule(id, p)
			c.mu.Unlock()
		}
	}()
}

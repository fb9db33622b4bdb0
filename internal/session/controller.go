package session

import (
	"context"
	"log"
	"sync"
)

// Factory builds a fresh session for cfg, including its own transport.
type Factory func(cfg Config) (*SessionContext, error)

// Controller holds at most one active session. Opening a new one tears the
// previous one down first so two negotiations never share local media.
type Controller struct {
	factory Factory

	mu      sync.Mutex
	current *SessionContext
}

func NewController(factory Factory) *Controller {
	return &Controller{factory: factory}
}

// Open ends the current session, if any, then creates and starts a new one.
func (c *Controller) Open(ctx context.Context, cfg Config) (*SessionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		log.Printf("[session] replacing session %s", c.current.ID)
		c.current.End()
		<-c.current.Done()
		c.current = nil
	}

	s, err := c.factory(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	c.current = s
	return s, nil
}

// Current returns the active session, or nil.
func (c *Controller) Current() *SessionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close ends the active session.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		s.End()
		<-s.Done()
	}
}

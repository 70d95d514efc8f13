package inference

import (
	"context"
	"slices"
	"sync"
)

// Conversation retains the turn history of one multi-turn exchange.
// A turn pair is recorded only when the model answered.
type Conversation struct {
	svc    *Service
	system string

	mu      sync.RWMutex
	history []Turn
}

func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	c.mu.RLock()
	turns := append(slices.Clone(c.history), Turn{Role: RoleUser, Content: text})
	c.mu.RUnlock()

	reply, err := c.svc.Generate(ctx, Request{
		System: c.system,
		Turns:  turns,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.history = append(c.history,
		Turn{Role: RoleUser, Content: text},
		Turn{Role: RoleModel, Content: reply},
	)
	c.mu.Unlock()

	return reply, nil
}

func (c *Conversation) History() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.history)
}

func (c *Conversation) SystemInstruction() string {
	return c.system
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/husk/internal/model"
)

// ErrInjected is returned by Memory operations armed with FailNext.
var ErrInjected = errors.New("injected checkpoint failure")

// Memory is an in-process checkpoint backend. Contents survive for the
// life of the value, which lets tests simulate a restart by building a new
// engine over the same Memory.
type Memory struct {
	mu      sync.Mutex
	rows    map[string]map[model.Key]model.Checkpoint
	failOps map[string]int
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		rows:    make(map[string]map[model.Key]model.Checkpoint),
		failOps: make(map[string]int),
	}
}

// Checkpoints returns the checkpointer for one domain.
func (m *Memory) Checkpoints(domain string) Checkpoints {
	return &memoryCheckpoints{m: m, domain: domain}
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// FailNext makes the next n calls of op ("load", "upsert", "clear") fail
// with ErrInjected.
func (m *Memory) FailNext(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOps[op] += n
}

// Len returns the number of checkpoints stored for domain.
func (m *Memory) Len(domain string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[domain])
}

// failLocked consumes one armed failure for op. Caller holds m.mu.
func (m *Memory) failLocked(op string) error {
	if m.failOps[op] > 0 {
		m.failOps[op]--
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

type memoryCheckpoints struct {
	m      *Memory
	domain string
}

func (c *memoryCheckpoints) Load(_ context.Context) ([]model.Checkpoint, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.m.failLocked("load"); err != nil {
		return nil, err
	}

	out := make([]model.Checkpoint, 0, len(c.m.rows[c.domain]))
	for _, cp := range c.m.rows[c.domain] {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ScopeID != out[j].Key.ScopeID {
			return out[i].Key.ScopeID < out[j].Key.ScopeID
		}
		return out[i].Key.SourceID < out[j].Key.SourceID
	})
	return out, nil
}

func (c *memoryCheckpoints) Upsert(_ context.Context, cp model.Checkpoint) error {
	if !cp.Key.Valid() {
		return fmt.Errorf("upsert checkpoint: incomplete key %q", cp.Key)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.m.failLocked("upsert"); err != nil {
		return err
	}

	rows, ok := c.m.rows[c.domain]
	if !ok {
		rows = make(map[model.Key]model.Checkpoint)
		c.m.rows[c.domain] = rows
	}
	if cp.Mode == 0 {
		cp.Mode = model.ModeUpdateInPlace
	}
	rows[cp.Key] = cp
	return nil
}

func (c *memoryCheckpoints) Clear(_ context.Context, key model.Key) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if err := c.m.failLocked("clear"); err != nil {
		return err
	}
	delete(c.m.rows[c.domain], key)
	return nil
}

func (c *memoryCheckpoints) FindByRepresentation(_ context.Context, representationID string) (model.Checkpoint, bool, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	for _, cp := range c.m.rows[c.domain] {
		if representationID != "" && cp.RepresentationID == representationID {
			return cp, true, nil
		}
	}
	return model.Checkpoint{}, false, nil
}

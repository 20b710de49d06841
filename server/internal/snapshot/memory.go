package snapshot

import (
	"context"
	"sync"
)

// Memory keeps the record set in process memory. Nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	records map[string]string
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]string)}
}

func (m *Memory) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecords(m.records), nil
}

func (m *Memory) Save(_ context.Context, records map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = copyRecords(records)
	return nil
}

func (*Memory) Close() error { return nil }

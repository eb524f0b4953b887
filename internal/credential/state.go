package credential

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStateStore is a StateStore for a single process.
type MemoryStateStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string]string)}
}

func (m *MemoryStateStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStateStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStateStore) CompareAndSwap(_ context.Context, key, old, new string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.values[key]
	if old == "" {
		if ok {
			return false, nil
		}
	} else if !ok || cur != old {
		return false, nil
	}
	m.values[key] = new
	return true, nil
}

// rotationState is encoded as "<index>|<unix nanos>".
type rotationState struct {
	Index      int
	LastSwitch time.Time
}

func (s rotationState) encode() string {
	return fmt.Sprintf("%d|%d", s.Index, s.LastSwitch.UnixNano())
}

func decodeRotationState(raw string) (rotationState, error) {
	idx, ts, ok := strings.Cut(raw, "|")
	if !ok {
		return rotationState{}, fmt.Errorf("malformed rotation state %q", raw)
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return rotationState{}, fmt.Errorf("rotation index: %w", err)
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return rotationState{}, fmt.Errorf("rotation timestamp: %w", err)
	}
	return rotationState{Index: index, LastSwitch: time.Unix(0, nanos)}, nil
}

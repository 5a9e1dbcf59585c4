package quotecache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sakif/portfolio-tracker/internal/marketdata"
)

// Memory is an in-process bounded LRU with per-entry expiry.
type Memory struct {
	lru *expirable.LRU[string, marketdata.Snapshot]
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a cache holding at most size snapshots for ttl each.
func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: expirable.NewLRU[string, marketdata.Snapshot](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, symbol string) (*marketdata.Snapshot, bool, error) {
	snap, ok := m.lru.Get(Key(symbol))
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

// Set stores a copy, so later changes by the caller do not leak into the cache.
func (m *Memory) Set(_ context.Context, symbol string, snap *marketdata.Snapshot) error {
	if snap == nil {
		return nil
	}
	m.lru.Add(Key(symbol), *snap)
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}

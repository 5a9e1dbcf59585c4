// Package quotecache holds recent market-data snapshots so repeated quote
// lookups and portfolio refreshes do not hit the provider every time.
package quotecache

import (
	"context"
	"strings"

	"github.com/sakif/portfolio-tracker/internal/marketdata"
)

// Cache stores snapshots keyed by symbol. Entries expire after the TTL the
// implementation was built with.
type Cache interface {
	// Get returns the cached snapshot and true, or nil and false on a miss.
	Get(ctx context.Context, symbol string) (*marketdata.Snapshot, bool, error)
	Set(ctx context.Context, symbol string, snap *marketdata.Snapshot) error
}

// Key normalizes a symbol into a cache key.
func Key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

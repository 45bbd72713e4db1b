package storage

import (
	"context"
	"time"
)

// DefaultUsedCodeTTL is how long a consumed authorization code stays blocked.
// Spotify codes are valid for well under this window.
const DefaultUsedCodeTTL = 5 * time.Minute

// UsedCodeStore records authorization codes that have been presented at the
// callback so each one is exchanged at most once.
//
// Entries expire after the TTL given when they were marked. Expired entries
// behave as absent and are physically removed by CleanupExpired, which the
// CleanupManager calls on an interval.
type UsedCodeStore interface {
	// IsUsed reports whether code is currently marked.
	IsUsed(ctx context.Context, code string) (bool, error)

	// MarkUsed marks code until ttl elapses. Marking an already marked code
	// extends its expiry.
	MarkUsed(ctx context.Context, code string, ttl time.Duration) error

	// MarkIfUnused atomically marks code and returns true, or returns false
	// if it was already marked. Of any number of concurrent calls for the
	// same code, exactly one returns true.
	MarkIfUnused(ctx context.Context, code string, ttl time.Duration) (bool, error)

	// Remove unmarks code so a failed exchange can be retried.
	Remove(ctx context.Context, code string) error

	// Count returns the number of unexpired entries. Diagnostics only.
	Count(ctx context.Context) (int, error)

	// CleanupExpired deletes expired entries and returns how many it removed.
	CleanupExpired(ctx context.Context) (int, error)

	Close() error
}

package targets

import (
	"github.com/pkg/errors"

	"github.com/llm-defender/defender-go/core/blacklist"
	"github.com/llm-defender/defender-go/core/registry"
	"github.com/llm-defender/defender-go/log"
)

// ErrCursorOutOfBounds signals broken candidate-list bookkeeping: the
// cursor points past the filtered population. This is a bug, not a
// recoverable condition, and must halt round processing.
var ErrCursorOutOfBounds = errors.New("starting index for querying the workers is out-of-bounds")

// Cursor rotates page by page across the filtered candidate list. It
// lives in memory only and resets to the first page whenever a rotation
// completes.
type Cursor struct {
	PageSize int
	Group    int
}

// Selection partitions one round's population: the page to query plus
// the excluded uids, split by exclusion reason for observability.
type Selection struct {
	ToQuery     []registry.Worker
	Blacklisted []int
	Invalid     []int
}

// Select filters the candidates and slices out the page the cursor
// points at, advancing the cursor for the next round. A worker is kept
// iff its stake is non-negative, it announced a routable address and
// its hotkey is not blacklisted. Repeated calls cover the whole
// filtered population exactly once per full rotation.
func Select(candidates []registry.Worker, banned *blacklist.Set, cursor *Cursor, logger log.Logger) (*Selection, error) {
	sel := &Selection{}
	var filtered []registry.Worker
	for _, w := range candidates {
		switch {
		case banned.Contains(w.Hotkey):
			sel.Blacklisted = append(sel.Blacklisted, w.UID)
		case w.Stake < 0 || !w.HasEndpoint():
			sel.Invalid = append(sel.Invalid, w.UID)
		default:
			filtered = append(filtered, w)
		}
	}
	if len(sel.Blacklisted) > 0 {
		logger.Debug("Excluded blacklisted workers", "uids", sel.Blacklisted)
	}
	if len(sel.Invalid) > 0 {
		logger.Debug("Excluded invalid workers", "uids", sel.Invalid)
	}

	// A page size covering the whole population means a single page
	// every round; the cursor stays put.
	if cursor.PageSize >= len(candidates) {
		sel.ToQuery = filtered
		return sel, nil
	}

	start := cursor.PageSize * cursor.Group
	end := cursor.PageSize * (cursor.Group + 1)
	if end > len(filtered) {
		end = len(filtered)
	}
	if start == end {
		// The cursor sits exactly at the tail; nothing to query this
		// round.
		return sel, nil
	}
	if start >= len(filtered) {
		return nil, errors.Wrapf(ErrCursorOutOfBounds, "start %d, population %d", start, len(filtered))
	}

	if end >= len(filtered) {
		cursor.Group = 0
	} else {
		cursor.Group++
	}

	logger.Debug("Selected target page", "start", start, "end", end, "population", len(filtered))
	sel.ToQuery = filtered[start:end]
	return sel, nil
}

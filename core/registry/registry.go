package registry

import (
	"context"
)

// UnroutableIP is the placeholder address the chain assigns to workers
// that never announced an endpoint.
const UnroutableIP = "0.0.0.0"

// Worker mirrors one registry slot. Entries are owned by the chain
// registry and are read-only inside the coordinator.
type Worker struct {
	UID             int
	Hotkey          string
	Stake           float64
	IP              string
	ValidatorPermit bool
}

// HasEndpoint reports whether the worker announced a routable address.
func (w Worker) HasEndpoint() bool {
	return w.IP != UnroutableIP
}

// Registry is the chain-registry collaborator: the source of truth for
// the current worker population and the sink for reward weights.
type Registry interface {
	// Sync refreshes the local snapshot from the chain.
	Sync(ctx context.Context) error
	// Workers returns the ordered population of the last sync.
	Workers() []Worker
	// BlockHeight returns the chain height of the last sync.
	BlockHeight() uint64
	// SetWeights publishes normalized reward weights for the given uids.
	SetWeights(ctx context.Context, uids []int, weights []float64) error
}

// Hotkeys extracts the ordered hotkey snapshot from a worker list.
func Hotkeys(workers []Worker) []string {
	keys := make([]string, len(workers))
	for i, w := range workers {
		keys[i] = w.Hotkey
	}
	return keys
}

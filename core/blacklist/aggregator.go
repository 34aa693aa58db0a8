package blacklist

import (
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// Aggregator merges the local and the remote blacklist into one
// deduplicated hotkey set once per round.
type Aggregator struct {
	local  Source
	remote Source
	log    log.Logger
}

func NewAggregator(local, remote Source) *Aggregator {
	return &Aggregator{
		local:  local,
		remote: remote,
		log:    log.New("component", "blacklist"),
	}
}

// Refresh fetches both sources independently and returns the union of
// their hotkeys. Either source degrading to empty never fails the
// refresh.
func (a *Aggregator) Refresh() *Set {
	local := a.fetch(a.local, "local")
	remote := a.fetch(a.remote, "remote")

	merged := FromEntries(local).Union(FromEntries(remote))
	a.log.Debug("Blacklist refreshed", "local", len(local), "remote", len(remote), "merged", merged.Cardinality())
	return merged
}

func (a *Aggregator) fetch(source Source, name string) []Entry {
	if source == nil {
		return nil
	}
	entries, status := source.Fetch()
	if status != types.FetchOK {
		a.log.Debug("Blacklist source degraded to empty", "source", name, "status", status.String())
		return nil
	}
	return entries
}

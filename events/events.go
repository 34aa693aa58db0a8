package events

// Topics published on the coordinator event bus.
const (
	RoundCompletedTopic   = "round:completed"
	WeightsPublishedTopic = "weights:published"
	StateSavedTopic       = "state:saved"
	BlacklistUpdatedTopic = "blacklist:updated"
)

type RoundCompletedEvent struct {
	Step    uint64
	Queried int
	Valid   int
	Invalid int
}

type WeightsPublishedEvent struct {
	Block   uint64
	Weights []float64
}

type StateSavedEvent struct {
	Step uint64
}

type BlacklistUpdatedEvent struct {
	Hotkeys []string
}

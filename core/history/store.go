package history

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"sync"

	"github.com/llm-defender/defender-go/common/fileutil"
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// MaxRecordsPerHotkey caps the per-worker history; the oldest records
// are dropped first.
const MaxRecordsPerHotkey = 100

// Record is one accepted response kept for penalty evaluation.
type Record struct {
	Prompt      string               `json:"prompt"`
	Confidence  float64              `json:"confidence"`
	SynapseUUID string               `json:"synapse_uuid"`
	Signature   string               `json:"signature"`
	Nonce       string               `json:"nonce"`
	Timestamp   string               `json:"timestamp"`
	Engines     []types.EngineOutput `json:"engines"`
}

// NewRecord extracts the retained fields from a validated response.
func NewRecord(resp *types.Response) Record {
	return Record{
		Prompt:      resp.Prompt,
		Confidence:  resp.Confidence,
		SynapseUUID: resp.SynapseUUID,
		Signature:   resp.Signature,
		Nonce:       resp.Nonce,
		Timestamp:   resp.Timestamp,
		Engines:     resp.KnownEngines(),
	}
}

// Store keeps the bounded per-worker response history and persists it
// between restarts. All round-time mutations happen on the coordinator
// goroutine; the mutex only guards against concurrent saves.
type Store struct {
	mutex     sync.Mutex
	path      string
	responses map[string][]Record
	log       log.Logger
}

func NewStore(path string) *Store {
	return &Store{
		path:      path,
		responses: make(map[string][]Record),
		log:       log.New("component", "history"),
	}
}

// Append adds a record to the hotkey's history and truncates it to the
// most recent MaxRecordsPerHotkey entries.
func (s *Store) Append(hotkey string, record Record) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	records := append(s.responses[hotkey], record)
	if len(records) > MaxRecordsPerHotkey {
		records = records[len(records)-MaxRecordsPerHotkey:]
	}
	s.responses[hotkey] = records
}

// Get returns the hotkey's history, newest last.
func (s *Store) Get(hotkey string) []Record {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	records := s.responses[hotkey]
	result := make([]Record, len(records))
	copy(result, records)
	return result
}

// Has reports whether the hotkey has any prior records.
func (s *Store) Has(hotkey string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.responses[hotkey]) > 0
}

// Size returns the number of tracked hotkeys.
func (s *Store) Size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.responses)
}

// Save serializes the full mapping to disk atomically.
func (s *Store) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := json.Marshal(s.responses)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(s.path, data, 0600); err != nil {
		return err
	}
	s.log.Debug("Saved response history", "hotkeys", len(s.responses))
	return nil
}

// Load reads the persisted mapping. An unreadable or structurally
// invalid blob is quarantined for manual inspection and the history is
// reset to empty; Load never fails the caller.
func (s *Store) Load() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.responses = make(map[string][]Record)

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.log.Trace("No response history file", "path", s.path)
		return
	}
	data, err := ioutil.ReadFile(s.path)
	if err != nil {
		s.quarantine(err)
		return
	}
	var loaded map[string][]Record
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.quarantine(err)
		return
	}
	// Re-apply the cap in case the blob predates a lower limit.
	for hotkey, records := range loaded {
		if len(records) > MaxRecordsPerHotkey {
			loaded[hotkey] = records[len(records)-MaxRecordsPerHotkey:]
		}
	}
	s.responses = loaded
	s.log.Debug("Loaded response history", "hotkeys", len(s.responses))
}

func (s *Store) quarantine(cause error) {
	quarantined, err := fileutil.Quarantine(s.path)
	if err != nil {
		s.log.Error("Unable to quarantine response history", "path", s.path, "err", err)
	}
	s.log.Error("Response history reset because the persisted data could not be read",
		"err", cause, "preserved", quarantined)
}

package state

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/llm-defender/defender-go/common/fileutil"
	"github.com/llm-defender/defender-go/core/blacklist"
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/log"
)

// PersistedState is the durable coordinator state written as one atomic
// unit: the round step, the reputation vector with its positional
// hotkey snapshot, the sync height and the last known blacklist.
type PersistedState struct {
	Step             uint64         `json:"step"`
	Scores           []float64      `json:"scores"`
	Hotkeys          []string       `json:"hotkeys"`
	LastUpdatedBlock uint64         `json:"last_updated_block"`
	Blacklist        *blacklist.Set `json:"blacklisted_hotkeys"`
}

// DefaultState returns the fresh state used on first run and after
// corruption recovery: an all-zero vector sized to the registry, step
// zero and an empty blacklist.
func DefaultState(registrySize int) *PersistedState {
	return &PersistedState{
		Scores:    make([]float64, registrySize),
		Blacklist: blacklist.NewSet(),
	}
}

func (st *PersistedState) valid() error {
	if len(st.Scores) != len(st.Hotkeys) {
		return errors.Errorf("score vector length %d does not match hotkey snapshot length %d",
			len(st.Scores), len(st.Hotkeys))
	}
	for uid, score := range st.Scores {
		if !types.InRange(score, 0.0, 1.0) {
			return errors.Errorf("score %f for uid %d is out of range", score, uid)
		}
	}
	return nil
}

// Persistence loads and saves the coordinator state file, recovering
// from corruption by quarantining the blob and falling back to the
// default state.
type Persistence struct {
	path string
	log  log.Logger
}

func NewPersistence(path string) *Persistence {
	return &Persistence{
		path: path,
		log:  log.New("component", "state"),
	}
}

// Save durably writes the state as one atomic unit.
func (p *Persistence) Save(st *PersistedState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "unable to encode state")
	}
	if err := fileutil.WriteAtomic(p.path, data, 0600); err != nil {
		return err
	}
	p.log.Debug("Saved coordinator state", "step", st.Step, "size", len(st.Scores),
		"block", st.LastUpdatedBlock, "blacklisted", st.Blacklist.Cardinality())
	return nil
}

// Load reads the persisted state. Any failure short of a missing file
// quarantines the blob under a timestamped .autorecovery name and
// returns the fresh default sized to the current registry; corruption
// never propagates to the caller.
func (p *Persistence) Load(registrySize int) *PersistedState {
	if _, err := os.Stat(p.path); os.IsNotExist(err) {
		p.log.Info("No previous state, starting with default scores", "path", p.path)
		return DefaultState(registrySize)
	}
	st, err := p.read()
	if err != nil {
		quarantined, qerr := fileutil.Quarantine(p.path)
		if qerr != nil {
			p.log.Error("Unable to quarantine state file", "path", p.path, "err", qerr)
		}
		p.log.Error("State reset because the persisted data could not be read",
			"err", err, "preserved", quarantined)
		return DefaultState(registrySize)
	}
	p.log.Info("Loaded coordinator state", "step", st.Step, "size", len(st.Scores),
		"block", st.LastUpdatedBlock)
	return st
}

func (p *Persistence) read() (*PersistedState, error) {
	data, err := ioutil.ReadFile(p.path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read state file")
	}
	st := &PersistedState{}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, errors.Wrap(err, "unable to decode state file")
	}
	if err := st.valid(); err != nil {
		return nil, err
	}
	if st.Blacklist == nil {
		st.Blacklist = blacklist.NewSet()
	}
	return st, nil
}

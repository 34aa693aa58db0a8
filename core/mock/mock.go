// Package mock provides in-process collaborator implementations used by
// tests and by the --mock dry-run mode of the coordinator binary.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/llm-defender/defender-go/core/coordinator"
	"github.com/llm-defender/defender-go/core/history"
	"github.com/llm-defender/defender-go/core/registry"
	"github.com/llm-defender/defender-go/core/types"
)

// Registry is a static in-memory registry snapshot.
type Registry struct {
	mutex       sync.Mutex
	workers     []registry.Worker
	height      uint64
	LastWeights []float64
	SyncErr     error
	WeightsErr  error
}

// NewRegistry synthesizes a population of the given size. Every fourth
// worker has no endpoint so selector filtering has something to chew
// on; uid 0 carries a validator permit and a large stake.
func NewRegistry(size int, ownHotkey string) *Registry {
	workers := make([]registry.Worker, size)
	for i := 0; i < size; i++ {
		workers[i] = registry.Worker{
			UID:    i,
			Hotkey: fmt.Sprintf("5MockHotkey%04d", i),
			Stake:  float64(10 * (i + 1)),
			IP:     fmt.Sprintf("192.0.2.%d", i%250+1),
		}
		if i > 0 && i%4 == 0 {
			workers[i].IP = registry.UnroutableIP
		}
	}
	if size > 0 {
		workers[0].Hotkey = ownHotkey
		workers[0].Stake = 50000
		workers[0].ValidatorPermit = true
	}
	return &Registry{workers: workers, height: 1}
}

func (r *Registry) Sync(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.SyncErr != nil {
		return r.SyncErr
	}
	r.height++
	return ctx.Err()
}

func (r *Registry) Workers() []registry.Worker {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	workers := make([]registry.Worker, len(r.workers))
	copy(workers, r.workers)
	return workers
}

// SetWorkers replaces the snapshot, simulating registry churn.
func (r *Registry) SetWorkers(workers []registry.Worker) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.workers = workers
}

func (r *Registry) BlockHeight() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.height
}

func (r *Registry) SetWeights(ctx context.Context, uids []int, weights []float64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.WeightsErr != nil {
		return r.WeightsErr
	}
	r.LastWeights = weights
	return ctx.Err()
}

// Signer fakes the wallet collaborator with a stable hotkey and a
// deterministic signature.
type Signer struct {
	HotkeyAddr string
}

func NewSigner() *Signer {
	return &Signer{HotkeyAddr: "5MockCoordinatorHotkey"}
}

func (s *Signer) Hotkey() string {
	return s.HotkeyAddr
}

func (s *Signer) Sign(data string) (string, error) {
	sum := sha256.Sum256([]byte(s.HotkeyAddr + data))
	return hex.EncodeToString(sum[:]), nil
}

// Transport synthesizes worker responses: confidence near the target
// label with some jitter, a configurable share of silent workers.
type Transport struct {
	rnd        *rand.Rand
	SilentRate float64
}

func NewTransport(seed int64) *Transport {
	return &Transport{rnd: rand.New(rand.NewSource(seed)), SilentRate: 0.1}
}

func (t *Transport) Query(ctx context.Context, workers []registry.Worker, prompt *types.Prompt) []coordinator.Result {
	results := make([]coordinator.Result, 0, len(workers))
	for _, w := range workers {
		if t.rnd.Float64() < t.SilentRate {
			results = append(results, coordinator.Result{Worker: w, ProcessTime: 12 * time.Second})
			continue
		}
		confidence := prompt.Label + t.rnd.Float64()*0.2 - 0.1
		confidence = math.Min(1.0, math.Max(0.0, confidence))
		results = append(results, coordinator.Result{
			Worker: w,
			Output: &types.Response{
				Analyzer:      prompt.Analyzer,
				Prompt:        prompt.Prompt,
				Confidence:    confidence,
				SynapseUUID:   prompt.SynapseUUID,
				Signature:     "mock-signature",
				Nonce:         strconv.FormatInt(t.rnd.Int63(), 16),
				Timestamp:     strconv.FormatInt(time.Now().Unix(), 10),
				SubnetVersion: "2.0.0",
				Engines: []types.EngineOutput{
					{Name: types.EngineTextClassification, Confidence: confidence},
					{Name: types.EngineVectorSearch, Confidence: confidence},
				},
			},
			ProcessTime: time.Duration(t.rnd.Int63n(int64(8 * time.Second))),
		})
	}
	return results
}

// Comparator scores a response by how close its confidence landed to
// the target label.
type Comparator struct{}

func (Comparator) Distance(resp *types.Response, target float64) (float64, bool) {
	if resp == nil || !types.InRange(resp.Confidence, 0.0, 1.0) {
		return 0.0, false
	}
	return 1.0 - math.Abs(resp.Confidence-target), true
}

// FixedSignal is a penalty sub-scorer returning a constant value.
type FixedSignal struct {
	Value float64
}

func (s FixedSignal) Check(uid int, records []history.Record, resp *types.Response, prompt string) float64 {
	return s.Value
}

package coordinator_test

import (
	"context"
	"io/ioutil"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/llm-defender/defender-go/config"
	"github.com/llm-defender/defender-go/core/coordinator"
	"github.com/llm-defender/defender-go/core/mock"
	"github.com/llm-defender/defender-go/core/state"
	"github.com/llm-defender/defender-go/events"
)

// deadEndpoint returns a url that refuses connections immediately, so
// the coordinator exercises its remote-source fallbacks without
// waiting on timeouts.
func deadEndpoint() string {
	server := httptest.NewServer(nil)
	server.Close()
	return server.URL
}

func testConfig(t *testing.T) (*config.Config, func()) {
	dir, err := ioutil.TempDir("", "coordinator")
	require.NoError(t, err)
	cfg := &config.Config{
		DataDir:           dir,
		Alpha:             0.9,
		QueryTimeoutSec:   12,
		BlacklistTimeout:  1,
		PromptTimeoutSec:  1,
		SyncTimeoutSec:    1,
		RoundIntervalSec:  0,
		MaxTargets:        64,
		ValidatorMinStake: 0,
		BlacklistAPIURL:   deadEndpoint(),
		PromptAPIURL:      deadEndpoint(),
		SubnetVersion:     "2.1.0",
	}
	return cfg, func() { os.RemoveAll(dir) }
}

func testCollaborators(reg *mock.Registry, transport *mock.Transport) coordinator.Collaborators {
	return coordinator.Collaborators{
		Registry:   reg,
		Transport:  transport,
		Signer:     mock.NewSigner(),
		Comparator: mock.Comparator{},
		Similarity: mock.FixedSignal{},
		Base:       mock.FixedSignal{},
		Duplicate:  mock.FixedSignal{},
	}
}

func runRounds(t *testing.T, c *coordinator.Coordinator, rounds int) {
	ctx, cancel := context.WithCancel(context.Background())
	completed := 0
	err := c.Bus().Subscribe(events.RoundCompletedTopic, func(e *events.RoundCompletedEvent) {
		completed++
		if completed >= rounds {
			cancel()
		}
	})
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	require.True(t, completed >= rounds)
}

func TestNew_requiresCollaborators(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()

	_, err := coordinator.New(cfg, dbm.NewMemDB(), coordinator.Collaborators{})
	r.Error(err)

	collab := testCollaborators(mock.NewRegistry(4, mock.NewSigner().Hotkey()), mock.NewTransport(1))
	collab.Comparator = nil
	_, err = coordinator.New(cfg, dbm.NewMemDB(), collab)
	r.Error(err)
}

func TestCoordinator_Start_failsIfUnregistered(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()

	// Registry population does not contain the coordinator's own hotkey.
	reg := mock.NewRegistry(4, "5SomebodyElse")
	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, mock.NewTransport(1)))
	r.NoError(err)

	err = c.Start(context.Background())
	r.Error(err)
	r.Contains(err.Error(), "not registered")
}

func TestCoordinator_roundsUpdateScores(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()

	reg := mock.NewRegistry(12, mock.NewSigner().Hotkey())
	transport := mock.NewTransport(7)
	transport.SilentRate = 0
	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)

	runRounds(t, c, 3)

	r.True(c.Step() >= 3)
	scores := c.Scores()
	r.Len(scores, 12)
	for _, score := range scores {
		r.True(score >= 0.0 && score <= 1.0)
	}
	// Responsive workers with routable endpoints accumulate reputation.
	r.True(scores[1] > 0.0)
	// Workers without an endpoint are never queried and stay at zero.
	r.Equal(0.0, scores[4])
	r.Equal(0.0, scores[8])
}

func TestCoordinator_publishesNormalizedWeights(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()

	reg := mock.NewRegistry(8, mock.NewSigner().Hotkey())
	transport := mock.NewTransport(3)
	transport.SilentRate = 0
	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)

	var published [][]float64
	r.NoError(c.Bus().Subscribe(events.WeightsPublishedTopic, func(e *events.WeightsPublishedEvent) {
		published = append(published, e.Weights)
	}))

	runRounds(t, c, 2)

	// The page size covers the whole population, so every round ends a
	// rotation and publishes.
	r.NotEmpty(published)
	r.Equal(published[len(published)-1], reg.LastWeights)
	sum := 0.0
	for _, w := range reg.LastWeights {
		r.True(w >= 0.0 && w <= 1.0)
		sum += w
	}
	r.InDelta(1.0, sum, 1e-9)
}

func TestCoordinator_silentWorkersScoreZero(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()

	reg := mock.NewRegistry(6, mock.NewSigner().Hotkey())
	transport := mock.NewTransport(5)
	transport.SilentRate = 1.0
	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)

	var lastRound *events.RoundCompletedEvent
	r.NoError(c.Bus().Subscribe(events.RoundCompletedTopic, func(e *events.RoundCompletedEvent) {
		lastRound = e
	}))

	runRounds(t, c, 1)

	r.Equal(0, lastRound.Valid)
	r.True(lastRound.Invalid > 0)
	for _, score := range c.Scores() {
		r.Equal(0.0, score)
	}
}

func TestCoordinator_persistsStateAcrossRestarts(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()
	cfg.LoadState = true

	reg := mock.NewRegistry(10, mock.NewSigner().Hotkey())
	transport := mock.NewTransport(11)
	transport.SilentRate = 0

	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)
	runRounds(t, c, 2)
	r.Equal(uint64(2), c.Step())

	// State and history are on disk after shutdown.
	_, err = os.Stat(filepath.Join(cfg.DataDir, "state.json"))
	r.NoError(err)
	_, err = os.Stat(filepath.Join(cfg.DataDir, "miners.json"))
	r.NoError(err)

	persisted := state.NewPersistence(cfg.StatePath()).Load(10)
	r.Equal(uint64(2), persisted.Step)
	r.Equal(c.Scores(), persisted.Scores)
	r.Len(persisted.Hotkeys, 10)

	// A restarted coordinator resumes from the persisted step.
	restarted, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)
	runRounds(t, restarted, 1)
	r.Equal(uint64(3), restarted.Step())
}

func TestCoordinator_freshStartIgnoresPersistedState(t *testing.T) {
	r := require.New(t)

	cfg, cleanup := testConfig(t)
	defer cleanup()
	cfg.LoadState = true

	reg := mock.NewRegistry(6, mock.NewSigner().Hotkey())
	transport := mock.NewTransport(2)
	transport.SilentRate = 0

	c, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)
	runRounds(t, c, 3)
	r.Equal(uint64(3), c.Step())

	cfg.LoadState = false
	fresh, err := coordinator.New(cfg, dbm.NewMemDB(), testCollaborators(reg, transport))
	r.NoError(err)
	runRounds(t, fresh, 1)
	r.Equal(uint64(1), fresh.Step())
}

package coordinator

import (
	"context"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/coreos/go-semver/semver"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	dbm "github.com/tendermint/tm-db"

	commonMath "github.com/llm-defender/defender-go/common/math"
	"github.com/llm-defender/defender-go/config"
	"github.com/llm-defender/defender-go/core/blacklist"
	"github.com/llm-defender/defender-go/core/history"
	"github.com/llm-defender/defender-go/core/penalty"
	"github.com/llm-defender/defender-go/core/registry"
	"github.com/llm-defender/defender-go/core/scoring"
	"github.com/llm-defender/defender-go/core/state"
	"github.com/llm-defender/defender-go/core/targets"
	"github.com/llm-defender/defender-go/core/types"
	"github.com/llm-defender/defender-go/events"
	"github.com/llm-defender/defender-go/log"
)

// auditRoundsRetained bounds the audit trail kept in the round db.
const auditRoundsRetained = 256

// Collaborators are the external systems the coordinator drives. All
// of them are required.
type Collaborators struct {
	Registry   registry.Registry
	Transport  Transport
	Signer     Signer
	Comparator scoring.Comparator
	Similarity penalty.Signal
	Base       penalty.Signal
	Duplicate  penalty.Signal
}

func (c Collaborators) validate() error {
	if c.Registry == nil {
		return errors.New("registry collaborator is required")
	}
	if c.Transport == nil {
		return errors.New("transport collaborator is required")
	}
	if c.Signer == nil {
		return errors.New("signer collaborator is required")
	}
	if c.Comparator == nil {
		return errors.New("comparator collaborator is required")
	}
	return nil
}

// WeightScores is the reporting view of one EMA update.
type WeightScores struct {
	New        float64 `json:"new"`
	Old        float64 `json:"old"`
	Change     float64 `json:"change"`
	Unweighted float64 `json:"unweighted"`
	Weight     float64 `json:"weight"`
}

// ResponseAudit is the full record of one processed response, kept for
// auditability.
type ResponseAudit struct {
	UID          int                 `json:"uid"`
	Hotkey       string              `json:"hotkey"`
	Target       float64             `json:"target"`
	Prompt       string              `json:"prompt"`
	SynapseUUID  string              `json:"synapse_uuid"`
	Response     *history.Record     `json:"response,omitempty"`
	Scored       scoring.ScoreResult `json:"scored_response"`
	WeightScores WeightScores        `json:"weight_scores"`
}

// Coordinator owns the round state: the reputation vector, the hotkey
// snapshot, the response history, the target cursor and the merged
// blacklist. All round state is mutated on the single control
// goroutine; rounds run strictly one after another.
type Coordinator struct {
	cfg    *config.Config
	collab Collaborators
	bus    EventBus.Bus

	scores       *scoring.Scores
	hotkeys      []string
	historyStore *history.Store
	persistence  *state.Persistence
	aggregator   *blacklist.Aggregator
	banned       *blacklist.Set
	cursor       *targets.Cursor
	scorer       *scoring.Scorer
	roundDb      *RoundDb
	prompts      *PromptClient
	fallback     *LocalPrompts
	prompt       *types.Prompt

	step             uint64
	lastUpdatedBlock uint64

	metrics *roundMetrics
	log     log.Logger
}

func New(cfg *config.Config, db dbm.DB, collab Collaborators) (*Coordinator, error) {
	if err := collab.validate(); err != nil {
		return nil, err
	}

	historyStore := history.NewStore(cfg.HistoryPath())
	evaluator := penalty.NewEvaluator(historyStore, collab.Similarity, collab.Base, collab.Duplicate)

	c := &Coordinator{
		cfg:          cfg,
		collab:       collab,
		bus:          EventBus.New(),
		scores:       scoring.NewScores(0),
		historyStore: historyStore,
		persistence:  state.NewPersistence(cfg.StatePath()),
		aggregator: blacklist.NewAggregator(
			blacklist.NewFileSource(cfg.LocalBlacklistPath()),
			blacklist.NewRemoteSource(cfg.BlacklistAPIURL, cfg.BlacklistFetchTimeout()),
		),
		banned:   blacklist.NewSet(),
		cursor:   &targets.Cursor{PageSize: cfg.MaxTargets},
		scorer:   scoring.NewScorer(collab.Comparator, evaluator),
		roundDb:  NewRoundDb(db),
		prompts:  NewPromptClient(cfg.PromptAPIURL, cfg.PromptTimeout(), collab.Signer),
		fallback: NewLocalPrompts(types.AnalyzerPromptInjection),
		metrics:  newRoundMetrics(),
		log:      log.New("component", "coordinator"),
	}
	return c, nil
}

// Bus exposes the round event bus for subscribers.
func (c *Coordinator) Bus() EventBus.Bus {
	return c.bus
}

func (c *Coordinator) Step() uint64 {
	return c.step
}

func (c *Coordinator) Scores() []float64 {
	return c.scores.Values()
}

// Start syncs the first registry snapshot, restores state and runs
// rounds until the context is cancelled. Only a scheduling invariant
// violation stops round processing early.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.syncRegistry(ctx); err != nil {
		return errors.Wrap(err, "initial registry sync failed")
	}
	c.hotkeys = registry.Hotkeys(c.collab.Registry.Workers())

	if err := c.checkRegistration(); err != nil {
		return err
	}

	if c.cfg.LoadState {
		c.loadState()
	} else {
		c.scores = scoring.NewScores(len(c.hotkeys))
	}

	c.log.Info("Coordinator started", "population", len(c.hotkeys),
		"max_targets", c.cfg.MaxTargets, "alpha", c.cfg.Alpha)

	for {
		select {
		case <-ctx.Done():
			c.saveState()
			return nil
		default:
		}

		if err := c.runRound(ctx); err != nil {
			c.log.Crit("Round processing halted", "err", err)
			c.saveState()
			return err
		}

		select {
		case <-ctx.Done():
			c.saveState()
			return nil
		case <-time.After(c.cfg.RoundInterval()):
		}
	}
}

func (c *Coordinator) runRound(ctx context.Context) error {
	start := time.Now()
	defer c.metrics.roundTimer.UpdateSince(start)
	c.metrics.rounds.Inc(1)

	if err := c.syncRegistry(ctx); err != nil {
		// Keep working against the last known snapshot.
		c.log.Error("Registry sync failed, using stale snapshot", "err", err)
	}
	c.reconcileHotkeys()

	c.banned = c.aggregator.Refresh()
	c.bus.Publish(events.BlacklistUpdatedTopic, &events.BlacklistUpdatedEvent{Hotkeys: c.banned.Hotkeys()})

	synapseUUID := uuid.New()
	prompt := c.servePrompt(synapseUUID)

	selection, err := targets.Select(c.collab.Registry.Workers(), c.banned, c.cursor, c.log)
	if err != nil {
		return err
	}
	if len(selection.ToQuery) == 0 {
		c.log.Debug("No workers to query this round", "step", c.step)
		c.step++
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout())
	results := c.collab.Transport.Query(queryCtx, selection.ToQuery, prompt)
	cancel()

	audits, valid, invalid := c.processResponses(results, prompt)
	for _, audit := range audits {
		c.roundDb.WriteAudit(c.step, audit)
	}
	if c.step > auditRoundsRetained {
		c.roundDb.Prune(c.step - auditRoundsRetained)
	}

	c.log.Info("Round completed", "step", c.step, "queried", len(results),
		"valid", len(valid), "invalid", len(invalid))
	c.bus.Publish(events.RoundCompletedTopic, &events.RoundCompletedEvent{
		Step:    c.step,
		Queried: len(results),
		Valid:   len(valid),
		Invalid: len(invalid),
	})

	c.step++

	// A full rotation over the filtered population ends with the cursor
	// back at the first page; that is the natural weight publication
	// boundary.
	if c.cursor.Group == 0 {
		c.publishWeights(ctx)
	}
	c.saveState()
	return nil
}

func (c *Coordinator) syncRegistry(ctx context.Context) error {
	syncCtx, cancel := context.WithTimeout(ctx, c.cfg.SyncTimeout())
	defer cancel()
	return c.collab.Registry.Sync(syncCtx)
}

func (c *Coordinator) checkRegistration() error {
	own := c.collab.Signer.Hotkey()
	for _, w := range c.collab.Registry.Workers() {
		if w.Hotkey != own {
			continue
		}
		if w.Stake < c.cfg.ValidatorMinStake {
			c.log.Warn("Coordinator stake is below the validator minimum, published weights may be ignored",
				"stake", w.Stake, "min", c.cfg.ValidatorMinStake)
		}
		c.log.Info("Coordinator is registered", "uid", w.UID)
		return nil
	}
	return errors.Errorf("coordinator key %s is not registered", own)
}

// reconcileHotkeys resets scores whose registry slot changed owner and
// reinitializes the whole vector on membership churn.
func (c *Coordinator) reconcileHotkeys() {
	current := registry.Hotkeys(c.collab.Registry.Workers())
	c.scores.ResetOnMembershipChange(c.hotkeys, current)
	c.hotkeys = current
}

// servePrompt returns the prompt for this round. A fresh prompt is
// fetched at the start of every rotation and reused across its pages,
// so every page of one rotation is scored against the same target.
func (c *Coordinator) servePrompt(synapseUUID string) *types.Prompt {
	if c.prompt != nil && c.cursor.Group != 0 {
		return c.prompt
	}
	if prompt, status := c.prompts.Fetch(synapseUUID); status == types.FetchOK {
		c.prompt = prompt
		return c.prompt
	}
	c.log.Warn("Unable to get a prompt from the prompt API, using local prompt instead")
	c.prompt = c.fallback.Pick(c.collab.Signer.Hotkey(), synapseUUID)
	return c.prompt
}

func (c *Coordinator) processResponses(results []Result, prompt *types.Prompt) (audits []*ResponseAudit, valid, invalid []int) {
	for _, result := range results {
		uid := result.Worker.UID
		hotkey := result.Worker.Hotkey

		audit := &ResponseAudit{
			UID:         uid,
			Hotkey:      hotkey,
			Target:      prompt.Label,
			Prompt:      prompt.Prompt,
			SynapseUUID: prompt.SynapseUUID,
		}

		if result.Output == nil || !result.Output.Validate(prompt.Analyzer) {
			old, unweighted := c.scores.Update(uid, c.cfg.Alpha, 0.0, prompt.Weight)
			audit.WeightScores = c.weightScores(uid, old, unweighted, prompt.Weight)
			invalid = append(invalid, uid)
			c.metrics.invalidResponses.Inc(1)
			audits = append(audits, audit)
			continue
		}

		c.warnOnNewerVersion(result.Output)

		scored := c.scorer.Score(uid, hotkey, result.Output, prompt.Label, prompt.Prompt,
			result.ProcessTime, c.cfg.QueryTimeout())
		old, unweighted := c.scores.Update(uid, c.cfg.Alpha, scored.Total, prompt.Weight)

		record := history.NewRecord(result.Output)
		c.historyStore.Append(hotkey, record)

		audit.Response = &record
		audit.Scored = scored
		audit.WeightScores = c.weightScores(uid, old, unweighted, prompt.Weight)
		valid = append(valid, uid)
		c.metrics.validResponses.Inc(1)
		audits = append(audits, audit)
	}

	c.log.Info("Received valid responses", "uids", valid)
	c.log.Info("Received invalid responses", "uids", invalid)
	return audits, valid, invalid
}

func (c *Coordinator) weightScores(uid int, old, unweighted, weight float64) WeightScores {
	current := c.scores.Get(uid)
	return WeightScores{
		New:        current,
		Old:        old,
		Change:     current - old,
		Unweighted: unweighted,
		Weight:     weight,
	}
}

func (c *Coordinator) warnOnNewerVersion(resp *types.Response) {
	if resp.SubnetVersion == "" {
		return
	}
	theirs, err := semver.NewVersion(resp.SubnetVersion)
	if err != nil {
		return
	}
	ours, err := semver.NewVersion(c.cfg.SubnetVersion)
	if err != nil {
		return
	}
	if ours.LessThan(*theirs) {
		c.log.Warn("Received a response from a worker with a higher subnet version, please update the coordinator",
			"ours", ours.String(), "theirs", theirs.String())
	}
}

func (c *Coordinator) publishWeights(ctx context.Context) {
	if len(c.hotkeys) == 0 {
		return
	}
	weights := commonMath.NormalizeScores(c.scores.Values())
	uids := make([]int, len(weights))
	for i := range uids {
		uids[i] = i
	}

	publishCtx, cancel := context.WithTimeout(ctx, c.cfg.SyncTimeout())
	defer cancel()
	if err := c.collab.Registry.SetWeights(publishCtx, uids, weights); err != nil {
		c.log.Error("Failed to set weights", "err", err)
		return
	}

	c.lastUpdatedBlock = c.collab.Registry.BlockHeight()
	c.metrics.weightsPublished.Inc(1)
	c.log.Info("Successfully set weights", "block", c.lastUpdatedBlock)
	c.bus.Publish(events.WeightsPublishedTopic, &events.WeightsPublishedEvent{
		Block:   c.lastUpdatedBlock,
		Weights: weights,
	})
}

func (c *Coordinator) saveState() {
	st := &state.PersistedState{
		Step:             c.step,
		Scores:           c.scores.Values(),
		Hotkeys:          c.hotkeys,
		LastUpdatedBlock: c.lastUpdatedBlock,
		Blacklist:        c.banned,
	}
	if err := c.persistence.Save(st); err != nil {
		c.log.Error("Unable to save coordinator state", "err", err)
	}
	if err := c.historyStore.Save(); err != nil {
		c.log.Error("Unable to save response history", "err", err)
	}
	c.bus.Publish(events.StateSavedTopic, &events.StateSavedEvent{Step: c.step})
}

func (c *Coordinator) loadState() {
	st := c.persistence.Load(len(c.hotkeys))
	c.scores = scoring.NewScoresFromValues(st.Scores)
	c.step = st.Step
	c.lastUpdatedBlock = st.LastUpdatedBlock
	c.banned = st.Blacklist

	// The persisted snapshot may predate registry churn.
	c.scores.ResetOnMembershipChange(st.Hotkeys, c.hotkeys)

	c.historyStore.Load()
}

// Package engine runs the sequencing pipeline: each submitted
// telemetry snapshot is tracked, extrapolated, checked for separation,
// scheduled onto merge point slots and turned into advisories.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yegors/mp-director/internal/advisory"
	"github.com/yegors/mp-director/internal/config"
	"github.com/yegors/mp-director/internal/conflict"
	"github.com/yegors/mp-director/internal/descent"
	"github.com/yegors/mp-director/internal/refdata"
	"github.com/yegors/mp-director/internal/scheduler"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/internal/trajectory"
	"github.com/yegors/mp-director/pkg/logger"
)

// Sink receives the advisories produced by a tick
type Sink interface {
	Deliver(ctx context.Context, advisories []*advisory.Advisory) error
}

// Store persists tick output. Persistence failures are logged, never
// fatal to the tick.
type Store interface {
	StoreAdvisories(ctx context.Context, advisories []*advisory.Advisory) error
	StoreSlots(ctx context.Context, tickTime time.Time, slots []scheduler.Slot) error
}

// AircraftPlan is the per-aircraft planning output of one tick
type AircraftPlan struct {
	Command    descent.Command  `json:"command"`
	Progress   descent.Progress `json:"progress"`
	Conflicted bool             `json:"conflicted"`
}

// TickResult is the full output of one pipeline tick
type TickResult struct {
	Time       time.Time               `json:"time"`
	Aircraft   []*tracker.State        `json:"aircraft"`
	Conflicts  []conflict.Event        `json:"conflicts"`
	Slots      []scheduler.Slot        `json:"slots"`
	Advisories []*advisory.Advisory    `json:"advisories"`
	Plans      map[string]AircraftPlan `json:"plans"`
}

// Engine owns the pipeline components and the tick loop
type Engine struct {
	tracker     *tracker.Tracker
	predictor   *trajectory.Predictor
	detector    *conflict.Detector
	scheduler   *scheduler.Scheduler
	planner     *descent.Planner
	synthesizer *advisory.Synthesizer
	sink        Sink
	store       Store
	logger      *logger.Logger

	snapshots chan tracker.Snapshot
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.RWMutex
	lastTick *TickResult
}

// New assembles the engine from configuration and reference data. The
// store may be nil to disable persistence.
func New(cfg *config.Config, ref *refdata.Data, sink Sink, store Store, log *logger.Logger) *Engine {
	return &Engine{
		tracker:     tracker.New(ref, log),
		predictor:   trajectory.NewPredictor(ref, cfg.Prediction),
		detector:    conflict.NewDetector(cfg.Separation),
		scheduler:   scheduler.New(cfg.Scheduler),
		planner:     descent.NewPlanner(cfg.Profile),
		synthesizer: advisory.NewSynthesizer(cfg.Advisory, cfg.Profile, ref, log),
		sink:        sink,
		store:       store,
		logger:      log.Named("engine"),
		snapshots:   make(chan tracker.Snapshot, 1),
		done:        make(chan struct{}),
	}
}

// Submit hands a snapshot to the tick loop. When a snapshot is already
// pending it is replaced: the engine always works on the latest frame
// and never builds a backlog.
func (e *Engine) Submit(snap tracker.Snapshot) {
	for {
		select {
		case e.snapshots <- snap:
			return
		default:
			select {
			case <-e.snapshots:
			default:
			}
		}
	}
}

// Start launches the tick loop
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
	e.logger.Info("Sequencing engine started")
}

// Stop terminates the tick loop and waits for the in-flight tick
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
	e.logger.Info("Sequencing engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-e.snapshots:
			e.processTick(ctx, snap)
		}
	}
}

// processTick runs one full pipeline pass over a snapshot
func (e *Engine) processTick(ctx context.Context, snap tracker.Snapshot) {
	states := e.tracker.Update(snap)

	arrivals := make([]*tracker.State, 0, len(states))
	for _, st := range states {
		if st.IsArrival() {
			arrivals = append(arrivals, st)
		}
	}

	trajectories := e.predictAll(ctx, arrivals)
	conflicts := e.detector.Detect(trajectories)
	slots := e.scheduler.Assign(arrivals)

	// closest to the merge point first
	sort.Slice(arrivals, func(i, j int) bool {
		if arrivals[i].Priority != arrivals[j].Priority {
			return arrivals[i].Priority > arrivals[j].Priority
		}
		return arrivals[i].Callsign < arrivals[j].Callsign
	})

	plans := make(map[string]AircraftPlan, len(arrivals))
	var advisories []*advisory.Advisory
	for _, st := range arrivals {
		in := descent.Input{
			AltitudeFt:     st.AltitudeFt,
			GroundSpeedKt:  st.GroundSpeedKt,
			DistanceNM:     st.DistanceToMPNM,
			CurrentRateFpm: st.VerticalSpeedFpm,
			Phase:          st.Phase,
		}
		cmd := e.planner.Plan(in)

		conflicted := false
		for _, ev := range conflicts {
			if ev.Involves(st.Callsign) {
				conflicted = true
				break
			}
		}

		plans[st.Callsign] = AircraftPlan{
			Command:    cmd,
			Progress:   e.planner.Monitor(in),
			Conflicted: conflicted,
		}

		slot, _ := scheduler.Lookup(slots, st.Callsign)
		adv := e.synthesizer.Build(st, slot, cmd, conflicted, snap.Time)

		advisedAt := time.Time{}
		if adv != nil {
			advisories = append(advisories, adv)
			advisedAt = adv.IssuedAt
		}
		e.tracker.Commit(st.Callsign, cmd.Phase, advisedAt)
	}

	if len(advisories) > 0 && e.sink != nil {
		if err := e.sink.Deliver(ctx, advisories); err != nil {
			e.logger.Warn("Failed to deliver advisories",
				logger.Int("count", len(advisories)), logger.Error(err))
		}
	}

	e.persist(ctx, snap.Time, advisories, slots)

	e.mu.Lock()
	e.lastTick = &TickResult{
		Time:       snap.Time,
		Aircraft:   e.tracker.States(),
		Conflicts:  conflicts,
		Slots:      slots,
		Advisories: advisories,
		Plans:      plans,
	}
	e.mu.Unlock()

	e.logger.Debug("Tick complete",
		logger.Int("aircraft", len(states)),
		logger.Int("arrivals", len(arrivals)),
		logger.Int("conflicts", len(conflicts)),
		logger.Int("advisories", len(advisories)))
}

// persist writes tick output to the store when one is configured
func (e *Engine) persist(ctx context.Context, tickTime time.Time, advisories []*advisory.Advisory, slots []scheduler.Slot) {
	if e.store == nil {
		return
	}
	if len(advisories) > 0 {
		if err := e.store.StoreAdvisories(ctx, advisories); err != nil {
			e.logger.Warn("Failed to store advisories", logger.Error(err))
		}
	}
	if len(slots) > 0 {
		if err := e.store.StoreSlots(ctx, tickTime, slots); err != nil {
			e.logger.Warn("Failed to store schedule slots", logger.Error(err))
		}
	}
}

// predictAll extrapolates every arrival concurrently. Prediction is
// read-only over tracker state, so the fan-out needs no locking
// beyond the per-slot writes.
func (e *Engine) predictAll(ctx context.Context, arrivals []*tracker.State) map[string][]trajectory.Point {
	results := make([][]trajectory.Point, len(arrivals))

	g, _ := errgroup.WithContext(ctx)
	for i, st := range arrivals {
		g.Go(func() error {
			results[i] = e.predictor.Predict(st)
			return nil
		})
	}
	g.Wait()

	out := make(map[string][]trajectory.Point, len(arrivals))
	for i, st := range arrivals {
		out[st.Callsign] = results[i]
	}
	return out
}

// LastTick returns the most recent tick result, or nil before the
// first tick
func (e *Engine) LastTick() *TickResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastTick
}

// Tracker exposes the state map for read-only API access
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

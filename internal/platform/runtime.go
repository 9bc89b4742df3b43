package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spikegrid/internal/model"
	"spikegrid/internal/network"
	"spikegrid/internal/storage"
)

const clockTaskName = "clock"

var (
	ErrNotInitialized  = errors.New("runtime is not initialized")
	ErrUnknownSnapshot = errors.New("unknown snapshot")
)

type Config struct {
	Store         storage.Store
	Network       network.Config
	ClockInterval time.Duration
	Supervisor    SupervisorPolicy
	Logger        *slog.Logger
}

// Runtime owns one network together with its store and the background clock
// that drives recovery and the reward neuron.
type Runtime struct {
	store  storage.Store
	cfg    Config
	logger *slog.Logger

	supervisor *Supervisor

	mu      sync.RWMutex
	network *network.Network
	ticking bool

	historyMu sync.Mutex
	history   []int
}

func NewRuntime(cfg Config) *Runtime {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ClockInterval <= 0 {
		cfg.ClockInterval = 10 * time.Millisecond
	}
	cfg.Network.Logger = cfg.Logger.With("component", "network")
	return &Runtime{
		store:      cfg.Store,
		cfg:        cfg,
		logger:     cfg.Logger,
		supervisor: NewSupervisor(cfg.Supervisor, cfg.Logger.With("component", "supervisor")),
	}
}

// Init prepares the store and an empty network. Calling it again is a no-op.
func (r *Runtime) Init(ctx context.Context) error {
	if r.store == nil {
		return fmt.Errorf("store is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.network != nil {
		return nil
	}
	if err := r.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	nw, err := network.New(r.cfg.Network)
	if err != nil {
		return err
	}
	r.network = nw
	r.resetHistory(0)
	r.logger.Info("runtime initialized", "workers", nw.Config().Workers, "seed", nw.Config().Seed)
	return nil
}

func (r *Runtime) Network() (*network.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.network == nil {
		return nil, ErrNotInitialized
	}
	return r.network, nil
}

// StartClock runs Step on every clock interval until StopClock or Stop.
func (r *Runtime) StartClock() error {
	nw, err := r.Network()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticking {
		return nil
	}
	if err := r.supervisor.StartWithPolicy(clockTaskName, RestartTransient, func(ctx context.Context) error {
		return r.runClock(ctx, nw)
	}); err != nil {
		return err
	}
	r.ticking = true
	r.logger.Debug("clock started", "interval", r.cfg.ClockInterval)
	return nil
}

func (r *Runtime) StopClock() {
	r.mu.Lock()
	ticking := r.ticking
	r.ticking = false
	r.mu.Unlock()
	if ticking {
		r.supervisor.Stop(clockTaskName)
		r.logger.Debug("clock stopped")
	}
}

func (r *Runtime) runClock(ctx context.Context, nw *network.Network) error {
	ticker := time.NewTicker(r.cfg.ClockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.step(nw)
		}
	}
}

// Step advances the clock once by hand.
func (r *Runtime) Step() (network.StepResult, error) {
	nw, err := r.Network()
	if err != nil {
		return network.StepResult{}, err
	}
	return r.step(nw), nil
}

// step records the reward value whenever it moves.
func (r *Runtime) step(nw *network.Network) network.StepResult {
	result := nw.Step()
	if result.RewardDelta != 0 {
		r.recordReward(result.RewardValue)
		r.logger.Debug("reward moved", "tick", result.Tick, "delta", result.RewardDelta, "value", result.RewardValue)
	}
	return result
}

// Stop halts the clock, drains propagation and releases the network.
func (r *Runtime) Stop() {
	r.StopClock()
	r.supervisor.StopAll()

	r.mu.Lock()
	nw := r.network
	r.network = nil
	r.mu.Unlock()
	if nw != nil {
		nw.Close()
		r.logger.Info("runtime stopped")
	}
}

func (r *Runtime) ClockStatus() []TaskStatus {
	return r.supervisor.Status()
}

func (r *Runtime) RewardHistory() []int {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	return append([]int(nil), r.history...)
}

func (r *Runtime) recordReward(value int) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = append(r.history, value)
}

func (r *Runtime) resetHistory(values ...int) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = append([]int(nil), values...)
}

// SaveSnapshot persists the current network and the reward history under the
// new snapshot's id.
func (r *Runtime) SaveSnapshot(ctx context.Context, label string) (model.SnapshotSummary, error) {
	nw, err := r.Network()
	if err != nil {
		return model.SnapshotSummary{}, err
	}
	if err := nw.Settle(ctx); err != nil {
		return model.SnapshotSummary{}, err
	}
	snapshot := nw.Snapshot(label)
	if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
		return model.SnapshotSummary{}, fmt.Errorf("save snapshot: %w", err)
	}
	if err := r.store.SaveRewardHistory(ctx, snapshot.ID, r.RewardHistory()); err != nil {
		return model.SnapshotSummary{}, fmt.Errorf("save reward history: %w", err)
	}
	r.logger.Info("snapshot saved", "id", snapshot.ID, "neurons", len(snapshot.Neurons), "synapses", len(snapshot.Synapses))
	return snapshot.Summary(), nil
}

// LoadSnapshot restores a stored snapshot into the (empty) network.
func (r *Runtime) LoadSnapshot(ctx context.Context, id string) error {
	nw, err := r.Network()
	if err != nil {
		return err
	}
	snapshot, ok, err := r.store.GetSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	if err := nw.Restore(snapshot); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", id, err)
	}
	history, ok, err := r.store.GetRewardHistory(ctx, id)
	if err != nil {
		return err
	}
	if !ok || len(history) == 0 {
		history = []int{snapshot.RewardValue}
	}
	r.resetHistory(history...)
	return nil
}

func (r *Runtime) GetSnapshot(ctx context.Context, id string) (model.NetworkSnapshot, bool, error) {
	if r.store == nil {
		return model.NetworkSnapshot{}, false, ErrNotInitialized
	}
	return r.store.GetSnapshot(ctx, id)
}

func (r *Runtime) ListSnapshots(ctx context.Context) ([]model.SnapshotSummary, error) {
	if r.store == nil {
		return nil, ErrNotInitialized
	}
	return r.store.ListSnapshots(ctx)
}

func (r *Runtime) DeleteSnapshot(ctx context.Context, id string) error {
	if r.store == nil {
		return ErrNotInitialized
	}
	deleted, err := r.store.DeleteSnapshot(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrUnknownSnapshot, id)
	}
	return nil
}

func (r *Runtime) StoredRewardHistory(ctx context.Context, id string) ([]int, bool, error) {
	if r.store == nil {
		return nil, false, ErrNotInitialized
	}
	return r.store.GetRewardHistory(ctx, id)
}

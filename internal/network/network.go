// Package network owns the neuron and synapse stores of one simulation and
// drives charge propagation, the recovery clock and reward plasticity.
//
// Lock order: the structural lock (Network.mu), then a neuron's lock, then the
// recovery registry lock. A synapse lock is never held while taking another.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"spikegrid/internal/grid"
	"spikegrid/internal/model"
	"spikegrid/internal/nn"
	"spikegrid/internal/workpool"
)

var (
	ErrPositionOccupied       = errors.New("position occupied")
	ErrDuplicateRewardNeuron  = errors.New("reward neuron already exists")
	ErrUnknownNeuron          = errors.New("unknown neuron")
	ErrUnknownSynapse         = errors.New("unknown synapse")
	ErrUnknownNeuronType      = errors.New("unknown neuron type")
	ErrConnectionNotPermitted = errors.New("connection not permitted")
	ErrSynapseExists          = errors.New("synapse already exists")
	ErrNetworkNotEmpty        = errors.New("network is not empty")
)

const DefaultRewardBound = 1000

type Config struct {
	Workers         int
	MaxShellLevel   int
	InitialStrength int
	RewardBound     int
	Seed            int64
	Logger          *slog.Logger
}

func normalizeConfig(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxShellLevel < 0 {
		cfg.MaxShellLevel = 0
	}
	if cfg.InitialStrength == 0 {
		cfg.InitialStrength = nn.DefaultInitialStrength
	}
	cfg.InitialStrength = nn.ClampStrength(cfg.InitialStrength)
	if cfg.RewardBound <= 0 {
		cfg.RewardBound = DefaultRewardBound
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}

type Network struct {
	cfg    Config
	logger *slog.Logger
	pool   *workpool.Pool

	mu             sync.RWMutex
	neurons        map[string]*neuron
	synapses       map[string]*synapse
	index          *grid.Index
	rewardNeuronID string

	rngMu sync.Mutex
	rng   *rand.Rand

	rewardMu    sync.Mutex
	rewardValue int

	firedMu sync.Mutex
	fired   []model.FiredNeuron

	recoveryMu sync.Mutex
	recovering map[string]*recoveryHandle

	ticks      atomic.Int64
	deliveries atomic.Int64
	fires      atomic.Int64
	dropped    atomic.Int64
}

type Stats struct {
	Neurons    int            `json:"neurons"`
	Synapses   int            `json:"synapses"`
	Occupied   int            `json:"occupied"`
	Recovering int            `json:"recovering"`
	Ticks      int64          `json:"ticks"`
	Deliveries int64          `json:"deliveries"`
	Fires      int64          `json:"fires"`
	Dropped    int64          `json:"dropped"`
	Reward     int            `json:"reward"`
	Pool       workpool.Stats `json:"pool"`
}

func New(cfg Config) (*Network, error) {
	cfg = normalizeConfig(cfg)
	pool, err := workpool.New(cfg.Workers, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("new worker pool: %w", err)
	}
	return &Network{
		cfg:        cfg,
		logger:     cfg.Logger,
		pool:       pool,
		neurons:    make(map[string]*neuron),
		synapses:   make(map[string]*synapse),
		index:      grid.NewIndex(),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		recovering: make(map[string]*recoveryHandle),
	}, nil
}

// Close drains in-flight propagation and stops the workers.
func (nw *Network) Close() {
	nw.pool.Close()
}

func (nw *Network) Config() Config {
	return nw.cfg
}

func (nw *Network) Occupied(pos model.CellPosition) bool {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.index.Occupied(pos)
}

func (nw *Network) RewardValue() int {
	nw.rewardMu.Lock()
	defer nw.rewardMu.Unlock()
	return nw.rewardValue
}

func (nw *Network) addReward(delta int) int {
	nw.rewardMu.Lock()
	defer nw.rewardMu.Unlock()
	next := nw.rewardValue + delta
	if next > nw.cfg.RewardBound {
		next = nw.cfg.RewardBound
	} else if next < -nw.cfg.RewardBound {
		next = -nw.cfg.RewardBound
	}
	nw.rewardValue = next
	return next
}

func (nw *Network) Stats() Stats {
	nw.mu.RLock()
	neurons, synapses, occupied := len(nw.neurons), len(nw.synapses), nw.index.Len()
	nw.mu.RUnlock()

	nw.recoveryMu.Lock()
	recovering := len(nw.recovering)
	nw.recoveryMu.Unlock()

	return Stats{
		Neurons:    neurons,
		Synapses:   synapses,
		Occupied:   occupied,
		Recovering: recovering,
		Ticks:      nw.ticks.Load(),
		Deliveries: nw.deliveries.Load(),
		Fires:      nw.fires.Load(),
		Dropped:    nw.dropped.Load(),
		Reward:     nw.RewardValue(),
		Pool:       nw.pool.Stats(),
	}
}

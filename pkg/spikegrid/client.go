// Package spikegrid is the embeddable API of the simulator: a client that owns
// one network, its snapshot store and its background clock.
package spikegrid

import (
	"context"
	"log/slog"

	"spikegrid/internal/config"
	"spikegrid/internal/model"
	"spikegrid/internal/network"
	"spikegrid/internal/nn"
	"spikegrid/internal/platform"
	"spikegrid/internal/storage"
)

type (
	CellPosition    = model.CellPosition
	NeuronType      = model.NeuronType
	NeuronRecord    = model.NeuronRecord
	SynapseRecord   = model.SynapseRecord
	FiredNeuron     = model.FiredNeuron
	SnapshotSummary = model.SnapshotSummary
	NetworkSnapshot = model.NetworkSnapshot
	Reinforcement   = nn.Reinforcement
	StepResult      = network.StepResult
	Stats           = network.Stats
	Scenario        = platform.Scenario
	ScenarioResult  = platform.ScenarioResult
	Config          = config.Config
)

const (
	NeuronGeneric = model.NeuronGeneric
	NeuronReward  = model.NeuronReward
	NeuronInput   = model.NeuronInput
	NeuronOutput  = model.NeuronOutput
)

var (
	ErrPositionOccupied       = network.ErrPositionOccupied
	ErrDuplicateRewardNeuron  = network.ErrDuplicateRewardNeuron
	ErrUnknownNeuron          = network.ErrUnknownNeuron
	ErrUnknownSynapse         = network.ErrUnknownSynapse
	ErrConnectionNotPermitted = network.ErrConnectionNotPermitted
	ErrSynapseExists          = network.ErrSynapseExists
	ErrUnknownSnapshot        = platform.ErrUnknownSnapshot
	ErrNotInitialized         = platform.ErrNotInitialized
)

type Options struct {
	// Config defaults to config.Default() when nil.
	Config *config.Config
	Logger *slog.Logger
	// Scenario, when set, contributes its seed to the network.
	Scenario *Scenario
}

type Client struct {
	cfg     *config.Config
	store   storage.Store
	runtime *platform.Runtime
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	netCfg := cfg.NetworkConfig()
	if opts.Scenario != nil {
		netCfg = opts.Scenario.NetworkConfig(netCfg)
	}

	return &Client{
		cfg:   cfg,
		store: store,
		runtime: platform.NewRuntime(platform.Config{
			Store:         store,
			Network:       netCfg,
			ClockInterval: cfg.Simulation.ClockInterval,
			Logger:        opts.Logger,
		}),
	}, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.runtime.Init(ctx)
}

// Close stops the clock, drains propagation and closes the store.
func (c *Client) Close() error {
	c.runtime.Stop()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Config() *config.Config {
	return c.cfg
}

func (c *Client) network() (*network.Network, error) {
	return c.runtime.Network()
}

func (c *Client) CreateNeuron(pos CellPosition, typ NeuronType) (string, error) {
	nw, err := c.network()
	if err != nil {
		return "", err
	}
	return nw.CreateNeuron(pos, typ)
}

func (c *Client) PlaceNearNeuron(ctx context.Context, seed CellPosition, typ NeuronType) (string, error) {
	nw, err := c.network()
	if err != nil {
		return "", err
	}
	return nw.PlaceNearNeuron(ctx, seed, typ)
}

func (c *Client) DeleteNeuron(id string) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.DeleteNeuron(id)
}

func (c *Client) Connect(parentID, childID string) (string, error) {
	nw, err := c.network()
	if err != nil {
		return "", err
	}
	return nw.Connect(parentID, childID)
}

func (c *Client) ConnectWithStrength(parentID, childID string, strength int) (string, error) {
	nw, err := c.network()
	if err != nil {
		return "", err
	}
	return nw.ConnectWithStrength(parentID, childID, strength)
}

func (c *Client) Disconnect(synapseID string) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.Disconnect(synapseID)
}

func (c *Client) DeliverCharge(neuronID string, strength int) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.DeliverCharge(neuronID, strength)
}

func (c *Client) Inject(neuronID string, input float64) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.Inject(neuronID, input)
}

func (c *Client) Settle(ctx context.Context) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.Settle(ctx)
}

func (c *Client) Stimulate(ctx context.Context, neuronID string, strength int) ([]FiredNeuron, error) {
	nw, err := c.network()
	if err != nil {
		return nil, err
	}
	return nw.Stimulate(ctx, neuronID, strength)
}

func (c *Client) FiredNeurons() ([]FiredNeuron, error) {
	nw, err := c.network()
	if err != nil {
		return nil, err
	}
	return nw.FiredNeurons(), nil
}

// Step advances the clock by hand; StartClock runs it in the background.
func (c *Client) Step() (StepResult, error) {
	return c.runtime.Step()
}

func (c *Client) StartClock() error {
	return c.runtime.StartClock()
}

func (c *Client) StopClock() {
	c.runtime.StopClock()
}

// ClockStatus reports the clock task and its restart history.
func (c *Client) ClockStatus() []platform.TaskStatus {
	return c.runtime.ClockStatus()
}

func (c *Client) ApplyReward(positive bool, amount int) error {
	nw, err := c.network()
	if err != nil {
		return err
	}
	return nw.ApplyReward(positive, amount)
}

func (c *Client) Reinforce(positive bool) (Reinforcement, error) {
	nw, err := c.network()
	if err != nil {
		return Reinforcement{}, err
	}
	return nw.Reinforce(positive)
}

func (c *Client) RewardValue() (int, error) {
	nw, err := c.network()
	if err != nil {
		return 0, err
	}
	return nw.RewardValue(), nil
}

func (c *Client) Neuron(id string) (NeuronRecord, bool, error) {
	nw, err := c.network()
	if err != nil {
		return NeuronRecord{}, false, err
	}
	rec, ok := nw.Neuron(id)
	return rec, ok, nil
}

// NeuronAt looks a neuron up by the cell it occupies.
func (c *Client) NeuronAt(pos CellPosition) (NeuronRecord, bool, error) {
	nw, err := c.network()
	if err != nil {
		return NeuronRecord{}, false, err
	}
	rec, ok := nw.NeuronAt(pos)
	return rec, ok, nil
}

func (c *Client) Neurons() ([]NeuronRecord, error) {
	nw, err := c.network()
	if err != nil {
		return nil, err
	}
	return nw.Neurons(), nil
}

func (c *Client) Synapse(id string) (SynapseRecord, bool, error) {
	nw, err := c.network()
	if err != nil {
		return SynapseRecord{}, false, err
	}
	rec, ok := nw.Synapse(id)
	return rec, ok, nil
}

func (c *Client) Synapses() ([]SynapseRecord, error) {
	nw, err := c.network()
	if err != nil {
		return nil, err
	}
	return nw.Synapses(), nil
}

func (c *Client) Occupied(pos CellPosition) (bool, error) {
	nw, err := c.network()
	if err != nil {
		return false, err
	}
	return nw.Occupied(pos), nil
}

// Seed reports the seed of the placement RNG.
func (c *Client) Seed() (int64, error) {
	nw, err := c.network()
	if err != nil {
		return 0, err
	}
	return nw.Config().Seed, nil
}

func (c *Client) Stats() (Stats, error) {
	nw, err := c.network()
	if err != nil {
		return Stats{}, err
	}
	return nw.Stats(), nil
}

func (c *Client) SaveSnapshot(ctx context.Context, label string) (SnapshotSummary, error) {
	return c.runtime.SaveSnapshot(ctx, label)
}

func (c *Client) LoadSnapshot(ctx context.Context, id string) error {
	return c.runtime.LoadSnapshot(ctx, id)
}

func (c *Client) GetSnapshot(ctx context.Context, id string) (NetworkSnapshot, bool, error) {
	return c.runtime.GetSnapshot(ctx, id)
}

func (c *Client) ListSnapshots(ctx context.Context) ([]SnapshotSummary, error) {
	return c.runtime.ListSnapshots(ctx)
}

func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	return c.runtime.DeleteSnapshot(ctx, id)
}

func (c *Client) RewardHistory(ctx context.Context, snapshotID string) ([]int, bool, error) {
	return c.runtime.StoredRewardHistory(ctx, snapshotID)
}

func (c *Client) RunScenario(ctx context.Context, sc Scenario) (ScenarioResult, error) {
	return c.runtime.RunScenario(ctx, sc)
}

func ParseNeuronType(s string) (NeuronType, error) {
	return model.ParseNeuronType(s)
}

func LoadScenario(path string) (Scenario, error) {
	return platform.LoadScenario(path)
}

func ParseScenario(data []byte) (Scenario, error) {
	return platform.ParseScenario(data)
}

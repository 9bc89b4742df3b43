package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"spikegrid/internal/grid"
	"spikegrid/internal/model"
	"spikegrid/internal/nn"
)

type neuron struct {
	id   string
	pos  model.CellPosition
	typ  model.NeuronType
	caps model.Capability

	removed atomic.Bool

	mu       sync.Mutex
	state    nn.Generic
	reward   *nn.Reward
	parents  map[string]struct{}
	children map[string]struct{}
}

func newNeuron(pos model.CellPosition, typ model.NeuronType) *neuron {
	n := &neuron{
		id:      model.NeuronID(pos),
		pos:     pos,
		typ:     typ,
		caps:    typ.Capabilities(),
		parents: make(map[string]struct{}),
	}
	if typ == model.NeuronReward {
		r := nn.NewReward()
		n.reward = &r
	} else {
		n.state = nn.NewGeneric()
	}
	if n.caps.Has(model.CanHaveChildren) {
		n.children = make(map[string]struct{})
	}
	return n
}

// settled reports whether the clock has nothing left to do for the neuron.
func (n *neuron) settledLocked() bool {
	if n.reward != nil {
		return true
	}
	return n.state.Resting() && n.state.Input == 0
}

func (n *neuron) recordLocked() model.NeuronRecord {
	rec := model.NeuronRecord{
		ID:             n.id,
		Position:       n.pos,
		Type:           n.typ,
		ParentSynapses: sortedKeys(n.parents),
	}
	if n.children != nil {
		rec.ChildSynapses = sortedKeys(n.children)
	}
	if n.reward != nil {
		cooldown := n.reward.Cooldown
		reverse := n.reward.ReverseThreshold
		rec.Potential = nn.RestingPotential
		rec.Input = n.reward.Input
		rec.FireThreshold = n.reward.FireThreshold
		rec.EffectiveThreshold = n.reward.FireThreshold
		rec.CanFire = true
		rec.Phase = model.PhaseResting
		rec.Cooldown = &cooldown
		rec.ReverseThreshold = &reverse
		return rec
	}
	rec.Potential = n.state.Potential
	rec.Input = n.state.Input
	rec.FireThreshold = n.state.FireThreshold
	rec.EffectiveThreshold = n.state.EffectiveThreshold(len(n.parents))
	rec.ExhaustionLevel = n.state.ExhaustionLevel
	rec.CanFire = n.state.CanFire
	rec.Phase = n.state.Phase
	return rec
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CreateNeuron binds a new neuron to pos. The position is reserved and the
// neuron inserted under one critical section.
func (nw *Network) CreateNeuron(pos model.CellPosition, typ model.NeuronType) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownNeuronType, typ)
	}

	nw.mu.Lock()
	defer nw.mu.Unlock()

	if nw.index.Occupied(pos) {
		return "", fmt.Errorf("%w: %s", ErrPositionOccupied, pos)
	}
	if typ == model.NeuronReward && nw.rewardNeuronID != "" {
		return "", ErrDuplicateRewardNeuron
	}

	n := newNeuron(pos, typ)
	nw.index.Reserve(pos)
	nw.neurons[n.id] = n
	if typ == model.NeuronReward {
		nw.rewardNeuronID = n.id
	}
	nw.logger.Debug("neuron created", "id", n.id, "position", pos.String(), "type", string(typ))
	return n.id, nil
}

// PlaceNearNeuron creates a neuron in the nearest open cell around seed. A
// cell taken between the search and the commit restarts the search.
func (nw *Network) PlaceNearNeuron(ctx context.Context, seed model.CellPosition, typ model.NeuronType) (string, error) {
	if !typ.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownNeuronType, typ)
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		nw.mu.RLock()
		nw.rngMu.Lock()
		pos, shell, err := grid.Search(seed, nw.index, nw.rng, nw.cfg.MaxShellLevel)
		nw.rngMu.Unlock()
		nw.mu.RUnlock()
		if err != nil {
			return "", err
		}

		id, err := nw.CreateNeuron(pos, typ)
		if errors.Is(err, ErrPositionOccupied) {
			nw.logger.Debug("placement conflict, retrying", "seed", seed.String(), "candidate", pos.String(), "attempt", attempt)
			continue
		}
		if err != nil {
			return "", err
		}
		nw.logger.Debug("neuron placed", "id", id, "seed", seed.String(), "position", pos.String(), "shell", shell.ScaleLevel)
		return id, nil
	}
}

// DeleteNeuron severs every incident synapse, releases the cell and marks the
// neuron removed so queued deliveries and recovery handles drop it.
func (nw *Network) DeleteNeuron(id string) error {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	n, ok := nw.neurons[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, id)
	}

	n.mu.Lock()
	n.removed.Store(true)
	incident := sortedKeys(n.parents)
	incident = append(incident, sortedKeys(n.children)...)
	n.mu.Unlock()

	for _, synapseID := range incident {
		nw.removeSynapseLocked(synapseID)
	}
	nw.index.Release(n.pos)
	delete(nw.neurons, id)
	if nw.rewardNeuronID == id {
		nw.rewardNeuronID = ""
	}
	nw.untrackRecovery(id)

	nw.logger.Debug("neuron deleted", "id", id, "position", n.pos.String(), "synapses", len(incident))
	return nil
}

func (nw *Network) Neuron(id string) (model.NeuronRecord, bool) {
	nw.mu.RLock()
	n, ok := nw.neurons[id]
	nw.mu.RUnlock()
	if !ok {
		return model.NeuronRecord{}, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.recordLocked(), true
}

func (nw *Network) NeuronAt(pos model.CellPosition) (model.NeuronRecord, bool) {
	return nw.Neuron(model.NeuronID(pos))
}

// Neurons lists every neuron ordered by position.
func (nw *Network) Neurons() []model.NeuronRecord {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.neuronsLocked()
}

func (nw *Network) neuronsLocked() []model.NeuronRecord {
	out := make([]model.NeuronRecord, 0, len(nw.neurons))
	for _, n := range nw.neurons {
		n.mu.Lock()
		out = append(out, n.recordLocked())
		n.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return lessPosition(out[i].Position, out[j].Position)
	})
	return out
}

func (nw *Network) RewardNeuronID() (string, bool) {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.rewardNeuronID, nw.rewardNeuronID != ""
}

func lessPosition(a, b model.CellPosition) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.Z < b.Z
}

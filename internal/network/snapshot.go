package network

import (
	"fmt"
	"time"

	"spikegrid/internal/grid"
	"spikegrid/internal/model"
	"spikegrid/internal/nn"
	"spikegrid/internal/storage"
)

// Snapshot captures a consistent view of the structure and neuron state. The
// structural lock is held, so no create/connect/delete interleaves; in-flight
// deliveries may still land on individual neurons while it runs.
func (nw *Network) Snapshot(label string) model.NetworkSnapshot {
	nw.mu.RLock()
	neurons := nw.neuronsLocked()
	synapses := nw.synapsesLocked()
	nw.mu.RUnlock()

	return model.NetworkSnapshot{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:          model.NewSnapshotID(),
		Label:       label,
		CreatedAt:   time.Now().UTC(),
		RewardValue: nw.RewardValue(),
		Neurons:     neurons,
		Synapses:    synapses,
	}
}

// Restore rebuilds an empty network from a snapshot. Nothing is applied if any
// record is inconsistent.
func (nw *Network) Restore(snapshot model.NetworkSnapshot) error {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if len(nw.neurons) > 0 || len(nw.synapses) > 0 {
		return ErrNetworkNotEmpty
	}

	neurons := make(map[string]*neuron, len(snapshot.Neurons))
	index := grid.NewIndex()
	rewardID := ""
	for _, rec := range snapshot.Neurons {
		n, err := restoreNeuron(rec)
		if err != nil {
			return err
		}
		if !index.Reserve(rec.Position) {
			return fmt.Errorf("%w: %s", ErrPositionOccupied, rec.Position)
		}
		if n.typ == model.NeuronReward {
			if rewardID != "" {
				return ErrDuplicateRewardNeuron
			}
			rewardID = n.id
		}
		neurons[n.id] = n
	}

	synapses := make(map[string]*synapse, len(snapshot.Synapses))
	for _, rec := range snapshot.Synapses {
		parent, ok := neurons[rec.ParentID]
		if !ok {
			return fmt.Errorf("%w: synapse %s parent %s", ErrUnknownNeuron, rec.ID, rec.ParentID)
		}
		child, ok := neurons[rec.ChildID]
		if !ok {
			return fmt.Errorf("%w: synapse %s child %s", ErrUnknownNeuron, rec.ID, rec.ChildID)
		}
		if !parent.caps.Has(model.CanHaveChildren) || !child.caps.Has(model.CanHaveParents) {
			return fmt.Errorf("%w: synapse %s", ErrConnectionNotPermitted, rec.ID)
		}
		id := model.SynapseID(parent.pos, child.pos)
		if rec.ID != id {
			return fmt.Errorf("synapse id %s does not match endpoints (want %s)", rec.ID, id)
		}
		if _, dup := synapses[id]; dup {
			return fmt.Errorf("%w: %s", ErrSynapseExists, id)
		}
		synapses[id] = &synapse{
			id:       id,
			parentID: parent.id,
			childID:  child.id,
			parent:   parent.pos,
			child:    child.pos,
			strength: nn.ClampStrength(rec.Strength),
			age:      rec.Age,
		}
		parent.children[id] = struct{}{}
		child.parents[id] = struct{}{}
	}

	nw.neurons = neurons
	nw.synapses = synapses
	nw.index = index
	nw.rewardNeuronID = rewardID

	nw.recoveryMu.Lock()
	nw.recovering = make(map[string]*recoveryHandle)
	for _, n := range neurons {
		if !n.settledLocked() {
			nw.recovering[n.id] = &recoveryHandle{neuron: n}
		}
	}
	nw.recoveryMu.Unlock()

	nw.rewardMu.Lock()
	nw.rewardValue = snapshot.RewardValue
	nw.rewardMu.Unlock()

	nw.logger.Info("network restored", "snapshot", snapshot.ID, "neurons", len(neurons), "synapses", len(synapses))
	return nil
}

func restoreNeuron(rec model.NeuronRecord) (*neuron, error) {
	if !rec.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNeuronType, rec.Type)
	}
	if want := model.NeuronID(rec.Position); rec.ID != want {
		return nil, fmt.Errorf("neuron id %s does not match position %s (want %s)", rec.ID, rec.Position, want)
	}
	n := newNeuron(rec.Position, rec.Type)
	if n.reward != nil {
		n.reward.Input = rec.Input
		n.reward.FireThreshold = rec.FireThreshold
		if rec.Cooldown != nil {
			n.reward.Cooldown = *rec.Cooldown
		}
		if rec.ReverseThreshold != nil {
			n.reward.ReverseThreshold = *rec.ReverseThreshold
		}
		return n, nil
	}
	n.state = nn.Generic{
		Potential:       rec.Potential,
		Input:           rec.Input,
		FireThreshold:   rec.FireThreshold,
		ExhaustionLevel: rec.ExhaustionLevel,
		CanFire:         rec.CanFire,
		Phase:           rec.Phase,
	}
	if n.state.Phase == "" {
		n.state.Phase = model.PhaseResting
	}
	return n, nil
}

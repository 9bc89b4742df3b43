package network

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"spikegrid/internal/model"
	"spikegrid/internal/nn"
)

type synapse struct {
	id       string
	parentID string
	childID  string
	parent   model.CellPosition
	child    model.CellPosition

	inFlight atomic.Int32

	mu       sync.Mutex
	strength int
	age      int
}

func (s *synapse) Strength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strength
}

func (s *synapse) reward(positive bool, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strength, s.age = nn.RewardSynapse(s.strength, s.age, positive, amount)
}

func (s *synapse) record() model.SynapseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SynapseRecord{
		ID:       s.id,
		ParentID: s.parentID,
		ChildID:  s.childID,
		Parent:   s.parent,
		Child:    s.child,
		Strength: s.strength,
		Age:      s.age,
		Charged:  s.inFlight.Load() > 0,
	}
}

func (nw *Network) Connect(parentID, childID string) (string, error) {
	return nw.ConnectWithStrength(parentID, childID, nw.cfg.InitialStrength)
}

// ConnectWithStrength creates the directed synapse parent->child and registers
// it on both endpoints. Strength is clamped to the synapse range.
func (nw *Network) ConnectWithStrength(parentID, childID string, strength int) (string, error) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	parent, ok := nw.neurons[parentID]
	if !ok {
		return "", fmt.Errorf("%w: parent %s", ErrUnknownNeuron, parentID)
	}
	child, ok := nw.neurons[childID]
	if !ok {
		return "", fmt.Errorf("%w: child %s", ErrUnknownNeuron, childID)
	}
	if !parent.caps.Has(model.CanHaveChildren) {
		return "", fmt.Errorf("%w: %s neuron %s cannot have children", ErrConnectionNotPermitted, parent.typ, parentID)
	}
	if !child.caps.Has(model.CanHaveParents) {
		return "", fmt.Errorf("%w: %s neuron %s cannot have parents", ErrConnectionNotPermitted, child.typ, childID)
	}

	id := model.SynapseID(parent.pos, child.pos)
	if _, exists := nw.synapses[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrSynapseExists, id)
	}

	nw.synapses[id] = &synapse{
		id:       id,
		parentID: parentID,
		childID:  childID,
		parent:   parent.pos,
		child:    child.pos,
		strength: nn.ClampStrength(strength),
	}

	parent.mu.Lock()
	parent.children[id] = struct{}{}
	parent.mu.Unlock()

	child.mu.Lock()
	child.parents[id] = struct{}{}
	child.mu.Unlock()

	nw.logger.Debug("synapse created", "id", id, "parent", parentID, "child", childID, "strength", strength)
	return id, nil
}

func (nw *Network) Disconnect(synapseID string) error {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	if !nw.removeSynapseLocked(synapseID) {
		return fmt.Errorf("%w: %s", ErrUnknownSynapse, synapseID)
	}
	nw.logger.Debug("synapse removed", "id", synapseID)
	return nil
}

// removeSynapseLocked drops the synapse and its endpoint registrations. The
// caller holds the structural write lock.
func (nw *Network) removeSynapseLocked(synapseID string) bool {
	s, ok := nw.synapses[synapseID]
	if !ok {
		return false
	}
	delete(nw.synapses, synapseID)

	if parent, ok := nw.neurons[s.parentID]; ok {
		parent.mu.Lock()
		delete(parent.children, synapseID)
		parent.mu.Unlock()
	}
	if child, ok := nw.neurons[s.childID]; ok {
		child.mu.Lock()
		delete(child.parents, synapseID)
		child.mu.Unlock()
	}
	return true
}

// ApplyReward runs one plasticity step over every synapse.
func (nw *Network) ApplyReward(positive bool, amount int) error {
	if err := nn.ValidateAmount(amount); err != nil {
		return err
	}

	nw.mu.RLock()
	defer nw.mu.RUnlock()

	for _, s := range nw.synapses {
		s.reward(positive, amount)
	}
	nw.logger.Debug("reward applied", "positive", positive, "amount", amount, "synapses", len(nw.synapses))
	return nil
}

// Reinforce reports an outcome and lets the current reward value decide the
// plasticity call.
func (nw *Network) Reinforce(positive bool) (nn.Reinforcement, error) {
	step := nn.ReinforcementFor(positive, nw.RewardValue())
	if err := nw.ApplyReward(step.Positive, step.Amount); err != nil {
		return nn.Reinforcement{}, err
	}
	return step, nil
}

func (nw *Network) Synapse(id string) (model.SynapseRecord, bool) {
	nw.mu.RLock()
	s, ok := nw.synapses[id]
	nw.mu.RUnlock()
	if !ok {
		return model.SynapseRecord{}, false
	}
	return s.record(), true
}

func (nw *Network) SynapseBetween(parentID, childID string) (model.SynapseRecord, bool) {
	nw.mu.RLock()
	parent, pok := nw.neurons[parentID]
	child, cok := nw.neurons[childID]
	nw.mu.RUnlock()
	if !pok || !cok {
		return model.SynapseRecord{}, false
	}
	return nw.Synapse(model.SynapseID(parent.pos, child.pos))
}

func (nw *Network) Synapses() []model.SynapseRecord {
	nw.mu.RLock()
	defer nw.mu.RUnlock()
	return nw.synapsesLocked()
}

func (nw *Network) synapsesLocked() []model.SynapseRecord {
	out := make([]model.SynapseRecord, 0, len(nw.synapses))
	for _, s := range nw.synapses {
		out = append(out, s.record())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return lessPosition(out[i].Parent, out[j].Parent)
		}
		return lessPosition(out[i].Child, out[j].Child)
	})
	return out
}

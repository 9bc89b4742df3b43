package network

import (
	"context"
	"fmt"

	"spikegrid/internal/logging"
	"spikegrid/internal/model"
	"spikegrid/internal/nn"
)

// DeliverCharge queues a charge of the given synapse strength for a neuron,
// as if it arrived through a synapse. The propagation wave it may start runs
// on the worker pool; Settle waits for it.
func (nw *Network) DeliverCharge(neuronID string, strength int) error {
	return nw.Inject(neuronID, nn.ChargeInput(strength))
}

// Inject queues raw input for a neuron.
func (nw *Network) Inject(neuronID string, input float64) error {
	nw.mu.RLock()
	n, ok := nw.neurons[neuronID]
	nw.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNeuron, neuronID)
	}
	return nw.pool.Submit(func() {
		nw.deliver(n, input)
	})
}

// Settle blocks until the current propagation wave has finished.
func (nw *Network) Settle(ctx context.Context) error {
	return nw.pool.Wait(ctx)
}

// Stimulate delivers a charge, waits for the wave and drains the fired list.
func (nw *Network) Stimulate(ctx context.Context, neuronID string, strength int) ([]model.FiredNeuron, error) {
	if err := nw.DeliverCharge(neuronID, strength); err != nil {
		return nil, err
	}
	if err := nw.Settle(ctx); err != nil {
		return nil, err
	}
	return nw.FiredNeurons(), nil
}

// FiredNeurons returns the neurons fired since the last call and clears the list.
func (nw *Network) FiredNeurons() []model.FiredNeuron {
	nw.firedMu.Lock()
	defer nw.firedMu.Unlock()
	out := nw.fired
	nw.fired = nil
	return out
}

func (nw *Network) deliver(n *neuron, input float64) {
	n.mu.Lock()
	if n.removed.Load() {
		n.mu.Unlock()
		nw.dropped.Add(1)
		return
	}

	var fired bool
	if n.reward != nil {
		n.reward.Receive(input)
	} else {
		fired = n.state.Receive(input, len(n.parents))
	}
	var children []string
	if fired && n.children != nil {
		children = sortedKeys(n.children)
	}
	if !n.settledLocked() {
		nw.trackRecovery(n)
	}
	n.mu.Unlock()

	if !fired {
		return
	}
	nw.logger.Log(context.Background(), logging.LevelTrace, "neuron fired", "id", n.id, "position", n.pos.String(), "children", len(children))
	nw.fires.Add(1)
	nw.firedMu.Lock()
	nw.fired = append(nw.fired, model.FiredNeuron{ID: n.id, Position: n.pos})
	nw.firedMu.Unlock()

	for _, synapseID := range children {
		nw.charge(synapseID)
	}
}

// charge forwards a fired neuron's output through one synapse as a pool task.
func (nw *Network) charge(synapseID string) {
	nw.mu.RLock()
	s, ok := nw.synapses[synapseID]
	nw.mu.RUnlock()
	if !ok {
		nw.dropped.Add(1)
		return
	}

	s.inFlight.Add(1)
	err := nw.pool.Submit(func() {
		defer s.inFlight.Add(-1)
		input := nn.ChargeInput(s.Strength())

		nw.mu.RLock()
		child, ok := nw.neurons[s.childID]
		nw.mu.RUnlock()
		if !ok {
			nw.dropped.Add(1)
			return
		}
		nw.deliveries.Add(1)
		nw.deliver(child, input)
	})
	if err != nil {
		s.inFlight.Add(-1)
		nw.dropped.Add(1)
		nw.logger.Warn("charge dropped", "synapse", synapseID, "err", err)
	}
}

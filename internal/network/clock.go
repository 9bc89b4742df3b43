package network

import "spikegrid/internal/nn"

// recoveryHandle ties a neuron to the clock while it is away from rest. The
// handle holds the neuron, never its id alone, and checks the removed flag on
// every step so a deleted neuron is simply let go.
type recoveryHandle struct {
	neuron *neuron
}

// trackRecovery registers n with the clock. The caller holds n.mu.
func (nw *Network) trackRecovery(n *neuron) {
	nw.recoveryMu.Lock()
	defer nw.recoveryMu.Unlock()
	if _, ok := nw.recovering[n.id]; !ok {
		nw.recovering[n.id] = &recoveryHandle{neuron: n}
	}
}

func (nw *Network) untrackRecovery(id string) {
	nw.recoveryMu.Lock()
	defer nw.recoveryMu.Unlock()
	delete(nw.recovering, id)
}

type StepResult struct {
	Tick        int64 `json:"tick"`
	Recovered   int   `json:"recovered"`
	Recovering  int   `json:"recovering"`
	RewardDelta int   `json:"reward_delta"`
	RewardValue int   `json:"reward_value"`
}

// Step advances the global clock once: every recovering neuron moves one step
// toward rest and the reward neuron runs its machine.
func (nw *Network) Step() StepResult {
	result := StepResult{Tick: nw.ticks.Add(1)}

	nw.recoveryMu.Lock()
	handles := make([]*recoveryHandle, 0, len(nw.recovering))
	for _, h := range nw.recovering {
		handles = append(handles, h)
	}
	nw.recoveryMu.Unlock()

	for _, h := range handles {
		n := h.neuron
		n.mu.Lock()
		if n.removed.Load() {
			nw.untrackRecovery(n.id)
			n.mu.Unlock()
			continue
		}
		if n.reward == nil {
			n.state.Recover()
		}
		if n.settledLocked() {
			nw.untrackRecovery(n.id)
			result.Recovered++
		} else {
			result.Recovering++
		}
		n.mu.Unlock()
	}

	if outcome := nw.stepRewardNeuron(); outcome != nn.RewardNone {
		result.RewardDelta = outcome.Delta()
		nw.addReward(result.RewardDelta)
	}
	result.RewardValue = nw.RewardValue()
	return result
}

func (nw *Network) stepRewardNeuron() nn.RewardOutcome {
	nw.mu.RLock()
	n, ok := nw.neurons[nw.rewardNeuronID]
	nw.mu.RUnlock()
	if !ok {
		return nn.RewardNone
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.removed.Load() || n.reward == nil {
		return nn.RewardNone
	}
	return n.reward.Step()
}

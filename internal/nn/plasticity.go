package nn

import "fmt"

const (
	StrengthLimit          = 1000
	DefaultInitialStrength = 1
)

// AgeMultiplier scales a reward amount by synapse age: young synapses respond
// strongly to feedback, old ones stay stable.
func AgeMultiplier(age int) int {
	switch {
	case age < 5:
		return 20
	case age < 20:
		return 5
	case age < 100:
		return 2
	default:
		return 1
	}
}

func ClampStrength(strength int) int {
	if strength > StrengthLimit {
		return StrengthLimit
	}
	if strength < -StrengthLimit {
		return -StrengthLimit
	}
	return strength
}

// RewardSynapse applies one plasticity step and returns the new strength and
// age. A negative strength flips the direction, so rewarding an inhibitory
// synapse deepens its inhibition.
func RewardSynapse(strength, age int, positive bool, amount int) (int, int) {
	if strength < 0 {
		positive = !positive
	}
	delta := amount * AgeMultiplier(age)
	if positive {
		strength += delta
	} else {
		strength -= delta
	}
	return ClampStrength(strength), age + 1
}

// Reinforcement is one call into the plasticity engine.
type Reinforcement struct {
	Positive bool
	Amount   int
}

func (r Reinforcement) String() string {
	if r.Positive {
		return fmt.Sprintf("reward(%d)", r.Amount)
	}
	return fmt.Sprintf("punish(%d)", r.Amount)
}

// ReinforcementFor picks the plasticity call for an outcome given the current
// global reward value. Outcomes that agree with the reward polarity are
// doubled; a reward while the value is negative is applied as a punishment.
func ReinforcementFor(positive bool, rewardValue int) Reinforcement {
	switch {
	case (positive && rewardValue > 0) || (!positive && rewardValue < 0):
		return Reinforcement{Positive: positive, Amount: 2}
	case positive && rewardValue <= -1:
		return Reinforcement{Positive: !positive, Amount: 1}
	default:
		return Reinforcement{Positive: positive, Amount: 1}
	}
}

func ValidateAmount(amount int) error {
	if amount < 0 {
		return fmt.Errorf("reward amount must be >= 0, got %d", amount)
	}
	return nil
}

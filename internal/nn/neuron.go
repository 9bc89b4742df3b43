package nn

import "spikegrid/internal/model"

const (
	RestingPotential         = -65.0
	FirstRefractoryPotential = -80.0
	RefractoryBase           = 80.0
	DisableFloor             = -90.0
	RecoveryStep             = 2.0
	FireConsumption          = 95.0
	NeuronOutput             = 30.0
	SynapseScale             = 0.1

	DefaultFireThreshold    = -55
	DefaultReverseThreshold = -75
	RewardCooldown          = 10
)

// ChargeInput converts a synapse strength into delivered input. Every neuron
// emits the same output; only the synapse scales it.
func ChargeInput(strength int) float64 {
	return NeuronOutput * (float64(strength) * SynapseScale)
}

// Generic is the firing/recovery machine shared by generic, input and output
// neurons. It holds no lock; the owner serializes access.
type Generic struct {
	Potential       float64
	Input           float64
	FireThreshold   int
	ExhaustionLevel int
	CanFire         bool
	Phase           model.Phase
}

func NewGeneric() Generic {
	return Generic{
		Potential:     RestingPotential,
		FireThreshold: DefaultFireThreshold,
		CanFire:       true,
		Phase:         model.PhaseResting,
	}
}

// EffectiveThreshold raises the bar by one per parent synapse.
func (g *Generic) EffectiveThreshold(fanIn int) int {
	return g.FireThreshold + fanIn
}

// Receive accumulates input and fires if the threshold is crossed. It reports
// whether the neuron fired; the caller dispatches to children.
func (g *Generic) Receive(input float64, fanIn int) bool {
	g.Input += input
	if g.Potential+g.Input <= float64(g.EffectiveThreshold(fanIn)) || !g.CanFire {
		return false
	}
	g.fire()
	return true
}

func (g *Generic) fire() {
	if g.Input > FireConsumption {
		g.Input -= FireConsumption
	} else {
		g.Input = 0
	}

	if g.Potential == RestingPotential {
		g.Potential = FirstRefractoryPotential
		g.ExhaustionLevel = 1
	} else {
		g.Potential = -(RefractoryBase + float64(g.ExhaustionLevel))
		g.ExhaustionLevel++
	}
	if g.Potential < DisableFloor {
		g.CanFire = false
	}
	g.Phase = model.PhaseRefractory
}

// Recover advances one clock step toward rest and reports whether the neuron
// is back at rest.
func (g *Generic) Recover() bool {
	g.Input = decayTowardZero(g.Input, RecoveryStep)

	switch {
	case g.Potential < RestingPotential-RecoveryStep:
		g.Potential += RecoveryStep
	case g.Potential > RestingPotential+RecoveryStep:
		g.Potential -= RecoveryStep
	default:
		g.Potential = RestingPotential
	}

	if g.Potential == RestingPotential {
		g.CanFire = true
		g.ExhaustionLevel = 0
		g.Phase = model.PhaseResting
		return true
	}
	g.Phase = model.PhaseRecovering
	return false
}

func (g *Generic) Resting() bool {
	return g.Potential == RestingPotential && g.Phase == model.PhaseResting
}

// RewardOutcome is the effect of one reward-machine step on the global signal.
type RewardOutcome int

const (
	RewardNone RewardOutcome = iota
	RewardIncrement
	RewardDecrement
)

func (o RewardOutcome) Delta() int {
	switch o {
	case RewardIncrement:
		return 1
	case RewardDecrement:
		return -1
	default:
		return 0
	}
}

// Reward is the machine of the single reward neuron. Its potential stays at
// rest; the thresholds are compared against the accumulated input alone.
type Reward struct {
	Input            float64
	FireThreshold    int
	ReverseThreshold int
	Cooldown         int
}

func NewReward() Reward {
	return Reward{
		FireThreshold:    DefaultFireThreshold,
		ReverseThreshold: DefaultReverseThreshold,
	}
}

func (r *Reward) Receive(input float64) {
	r.Input += input
}

func (r *Reward) Step() RewardOutcome {
	if r.Cooldown > 0 {
		r.Cooldown--
		return RewardNone
	}
	switch {
	case r.Input > float64(r.FireThreshold):
		r.Input = 0
		r.Cooldown = RewardCooldown
		return RewardIncrement
	case r.Input < float64(r.ReverseThreshold):
		r.Input = 0
		r.Cooldown = RewardCooldown
		return RewardDecrement
	default:
		r.Input = decayTowardZero(r.Input, RecoveryStep)
		return RewardNone
	}
}

func decayTowardZero(v, step float64) float64 {
	switch {
	case v > step:
		return v - step
	case v < -step:
		return v + step
	default:
		return 0
	}
}

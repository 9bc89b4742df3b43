package nn

import (
	"testing"

	"spikegrid/internal/model"
)

func TestChargeInput(t *testing.T) {
	if got := ChargeInput(50); got != 150 {
		t.Fatalf("got=%f want=150", got)
	}
	if got := ChargeInput(-10); got != -30 {
		t.Fatalf("got=%f want=-30", got)
	}
}

func TestGenericFiresAboveEffectiveThreshold(t *testing.T) {
	g := NewGeneric()
	if g.EffectiveThreshold(1) != -54 {
		t.Fatalf("unexpected effective threshold: %d", g.EffectiveThreshold(1))
	}
	if fired := g.Receive(10, 1); fired {
		t.Fatal("expected -65+10 to stay below -54")
	}
	if fired := g.Receive(90, 1); !fired {
		t.Fatal("expected -65+100 to fire")
	}
	if g.Potential != FirstRefractoryPotential || g.ExhaustionLevel != 1 {
		t.Fatalf("unexpected post-fire state: %+v", g)
	}
	if g.Input != 5 {
		t.Fatalf("expected 100-95 input left, got %f", g.Input)
	}
	if g.Phase != model.PhaseRefractory {
		t.Fatalf("unexpected phase: %s", g.Phase)
	}
}

func TestGenericFanInRaisesThreshold(t *testing.T) {
	g := NewGeneric()
	// -65 + 11 = -54 is not strictly above -55 + 1.
	if g.Receive(11, 1) {
		t.Fatal("expected no fire at exactly the threshold")
	}
	g = NewGeneric()
	if !g.Receive(11, 0) {
		t.Fatal("expected fire with no fan-in")
	}
}

func TestGenericExhaustionDisablesFiring(t *testing.T) {
	g := NewGeneric()
	fires := 0
	for i := 0; i < 20; i++ {
		if g.Receive(500, 0) {
			fires++
		}
		if g.Potential < -(RefractoryBase + 11) {
			t.Fatalf("potential fell below deepest exhaustion step: %f", g.Potential)
		}
	}
	// -80, -81 ... -91: the twelfth fire crosses the floor.
	if fires != 12 {
		t.Fatalf("expected 12 fires before exhaustion, got %d", fires)
	}
	if g.CanFire || g.Potential != -91 {
		t.Fatalf("expected disabled neuron at -91: %+v", g)
	}
}

func TestGenericRecoveryReturnsExactlyToRest(t *testing.T) {
	for depth := 0; depth < 15; depth++ {
		g := NewGeneric()
		for i := 0; i <= depth; i++ {
			g.Receive(500, 0)
		}
		g.Input = 0
		steps := 0
		for !g.Recover() {
			steps++
			if g.Potential > RestingPotential {
				t.Fatalf("depth %d overshot rest: %f", depth, g.Potential)
			}
			if g.Phase != model.PhaseRecovering {
				t.Fatalf("expected recovering phase, got %s", g.Phase)
			}
			if steps > 100 {
				t.Fatalf("depth %d did not recover", depth)
			}
		}
		if g.Potential != RestingPotential || !g.CanFire || g.ExhaustionLevel != 0 {
			t.Fatalf("depth %d: unexpected rest state %+v", depth, g)
		}
		for i := 0; i < 5; i++ {
			g.Recover()
			if g.Potential != RestingPotential {
				t.Fatalf("rest is not stable: %f", g.Potential)
			}
		}
	}
}

func TestGenericRecoveryHandlesDepolarization(t *testing.T) {
	g := NewGeneric()
	g.Potential = -58
	g.Phase = model.PhaseRecovering
	for !g.Recover() {
	}
	if g.Potential != RestingPotential {
		t.Fatalf("expected rest, got %f", g.Potential)
	}
}

func TestGenericRecoveryDecaysInput(t *testing.T) {
	g := NewGeneric()
	g.Input = 3
	g.Recover()
	if g.Input != 1 {
		t.Fatalf("got=%f want=1", g.Input)
	}
	g.Recover()
	if g.Input != 0 {
		t.Fatalf("got=%f want=0", g.Input)
	}
	g.Input = -5
	g.Recover()
	if g.Input != -3 {
		t.Fatalf("got=%f want=-3", g.Input)
	}
}

func TestRewardMachine(t *testing.T) {
	r := NewReward()
	if out := r.Step(); out != RewardIncrement {
		t.Fatalf("expected input 0 above the fire threshold to increment, got %v", out)
	}
	if r.Input != 0 || r.Cooldown != RewardCooldown {
		t.Fatalf("unexpected post-reward state: %+v", r)
	}

	r.Receive(-80)
	for i := 0; i < RewardCooldown; i++ {
		if out := r.Step(); out != RewardNone {
			t.Fatalf("expected cooldown step %d to be idle", i)
		}
	}
	if r.Input != -80 {
		t.Fatalf("expected input untouched during cooldown, got %f", r.Input)
	}
	if out := r.Step(); out != RewardDecrement {
		t.Fatalf("expected decrement below the reverse threshold, got %v", out)
	}
	for i := 0; i < RewardCooldown; i++ {
		r.Step()
	}

	r.Receive(-20)
	if out := r.Step(); out != RewardIncrement {
		t.Fatalf("expected input -20 above the fire threshold to increment, got %v", out)
	}
}

func TestRewardMachineThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  RewardOutcome
	}{
		{input: -54, want: RewardIncrement},
		{input: -55, want: RewardNone},
		{input: -75, want: RewardNone},
		{input: -76, want: RewardDecrement},
	}
	for _, tt := range tests {
		r := NewReward()
		r.Receive(tt.input)
		if out := r.Step(); out != tt.want {
			t.Fatalf("input %v: got %v want %v", tt.input, out, tt.want)
		}
	}
}

func TestRewardMachineDecaysInsideDeadBand(t *testing.T) {
	r := NewReward()
	r.Receive(-60)
	if out := r.Step(); out != RewardNone || r.Input != -58 {
		t.Fatalf("expected decay to -58, got out=%v input=%f", out, r.Input)
	}
	if out := r.Step(); out != RewardNone || r.Input != -56 {
		t.Fatalf("expected decay to -56, got out=%v input=%f", out, r.Input)
	}
	r.Step()
	if r.Input != -54 {
		t.Fatalf("expected decay to -54, got %f", r.Input)
	}
	if out := r.Step(); out != RewardIncrement {
		t.Fatalf("expected decayed input to cross the fire threshold, got %v", out)
	}
}

func TestDecayTowardZeroNeverOvershoots(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{3, 1},
		{1, 0},
		{-1.5, 0},
		{-9, -7},
		{0, 0},
	}
	for _, tt := range tests {
		if got := decayTowardZero(tt.in, RecoveryStep); got != tt.want {
			t.Fatalf("decayTowardZero(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRewardOutcomeDelta(t *testing.T) {
	if RewardIncrement.Delta() != 1 || RewardDecrement.Delta() != -1 || RewardNone.Delta() != 0 {
		t.Fatal("unexpected outcome deltas")
	}
}

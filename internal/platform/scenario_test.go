package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spikegrid/internal/network"
)

const chainScenario = `
seed: 7
neurons:
  - {name: a, type: input, at: [0, 0, 0]}
  - {name: b, type: generic, near: a}
  - {name: out, type: output, at: [5, 0, 0]}
  - {name: pleasure, type: reward, at: [0, 5, 0]}
synapses:
  - {from: a, to: b, strength: 50}
  - {from: b, to: out, strength: 50}
  - {from: b, to: pleasure, strength: 10}
actions:
  - {charge: a, strength: 34}
  - {step: 1}
  - {reinforce: true}
  - {reward: false, amount: 2}
  - {inject: out, input: -100}
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(chainScenario))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Seed != 7 || len(sc.Neurons) != 4 || len(sc.Synapses) != 3 || len(sc.Actions) != 5 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	kinds := make([]string, 0, len(sc.Actions))
	for _, a := range sc.Actions {
		kind, err := a.Kind()
		if err != nil {
			t.Fatalf("kind: %v", err)
		}
		kinds = append(kinds, kind)
	}
	if got := strings.Join(kinds, ","); got != "charge,step,reinforce,reward,inject" {
		t.Fatalf("unexpected kinds: %s", got)
	}
	if cfg := sc.NetworkConfig(network.Config{Seed: 1, Workers: 3}); cfg.Seed != 7 || cfg.Workers != 3 {
		t.Fatalf("unexpected network config: %+v", cfg)
	}
}

func TestParseScenarioRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "neurons:\n  - {name: a, type: generic, at: [0,0,0], colour: red}\n", "colour"},
		{"duplicate name", "neurons:\n  - {name: a, at: [0,0,0]}\n  - {name: a, at: [1,0,0]}\n", "duplicate"},
		{"bad type", "neurons:\n  - {name: a, type: glial, at: [0,0,0]}\n", "glial"},
		{"short position", "neurons:\n  - {name: a, at: [0,0]}\n", "three coordinates"},
		{"no placement", "neurons:\n  - {name: a}\n", "at or near"},
		{"both placements", "neurons:\n  - {name: a, at: [0,0,0]}\n  - {name: b, at: [1,0,0], near: a}\n", "both"},
		{"near forward ref", "neurons:\n  - {name: b, near: a}\n  - {name: a, at: [0,0,0]}\n", "undeclared"},
		{"unknown synapse end", "neurons:\n  - {name: a, at: [0,0,0]}\nsynapses:\n  - {from: a, to: z}\n", "unknown neuron"},
		{"strength range", "neurons:\n  - {name: a, at: [0,0,0]}\nsynapses:\n  - {from: a, to: a, strength: 5000}\n", "out of range"},
		{"empty action", "actions:\n  - {}\n", "exactly one"},
		{"two actions", "neurons:\n  - {name: a, at: [0,0,0]}\nactions:\n  - {charge: a, step: 2}\n", "exactly one"},
		{"negative step", "actions:\n  - {step: -2}\n", "positive tick count, got -2"},
		{"zero step", "actions:\n  - {step: 0}\n", "exactly one"},
		{"negative amount", "actions:\n  - {reward: true, amount: -1}\n", "amount"},
		{"unknown charge target", "actions:\n  - {charge: ghost, strength: 10}\n", "ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(chainScenario))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rt := newTestRuntime(t)
	result, err := rt.RunScenario(context.Background(), sc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Positions["a"] != "0,0,0" {
		t.Fatalf("unexpected position for a: %s", result.Positions["a"])
	}
	if !strings.Contains(result.Positions["b"], ",") || result.Positions["b"] == "0,0,0" {
		t.Fatalf("expected b placed next to a, got %s", result.Positions["b"])
	}
	if len(result.Waves) != 5 {
		t.Fatalf("expected 5 waves, got %d", len(result.Waves))
	}

	charge := result.Waves[0]
	fired := make([]string, 0, len(charge.Fired))
	for _, f := range charge.Fired {
		fired = append(fired, f.Name)
	}
	if strings.Join(fired, ",") != "a,b,out" && strings.Join(fired, ",") != "a,b" {
		t.Fatalf("unexpected fired neurons: %v", fired)
	}
	if len(fired) < 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("expected a then b to fire, got %v", fired)
	}

	step := result.Waves[1]
	if step.Kind != ActionStep || step.RewardValue != 1 {
		t.Fatalf("expected reward neuron to raise the reward value, got %+v", step)
	}
	if result.Waves[2].Detail != "reward(2)" {
		t.Fatalf("expected doubled reward while value is positive, got %q", result.Waves[2].Detail)
	}
	if result.Waves[3].Detail != "punish(2)" {
		t.Fatalf("unexpected explicit reward detail: %q", result.Waves[3].Detail)
	}
	if result.Waves[4].Kind != ActionInject || len(result.Waves[4].Fired) != 0 {
		t.Fatalf("expected silent inject, got %+v", result.Waves[4])
	}
	if result.RewardValue != 1 || len(result.RewardHistory) != 2 {
		t.Fatalf("unexpected reward summary: value=%d history=%v", result.RewardValue, result.RewardHistory)
	}
	if result.Stats.Neurons != 4 || result.Stats.Synapses != 3 {
		t.Fatalf("unexpected stats: %+v", result.Stats)
	}
}

func TestRunScenarioReportsOccupiedCell(t *testing.T) {
	sc := Scenario{Neurons: []ScenarioNeuron{
		{Name: "a", At: []int64{0, 0, 0}},
		{Name: "b", At: []int64{0, 0, 0}},
	}}
	rt := newTestRuntime(t)
	_, err := rt.RunScenario(context.Background(), sc)
	if !errors.Is(err, network.ErrPositionOccupied) {
		t.Fatalf("expected ErrPositionOccupied, got %v", err)
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.yaml")
	if err := os.WriteFile(path, []byte(chainScenario), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sc.Neurons) != 4 {
		t.Fatalf("unexpected neurons: %+v", sc.Neurons)
	}
	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

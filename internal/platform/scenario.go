package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"spikegrid/internal/model"
	"spikegrid/internal/network"
	"spikegrid/internal/nn"
)

// Scenario is a scripted experiment: a layout of named neurons, the synapses
// between them and a sequence of actions run against the network.
type Scenario struct {
	Seed     int64             `yaml:"seed" json:"seed"`
	Neurons  []ScenarioNeuron  `yaml:"neurons" json:"neurons"`
	Synapses []ScenarioSynapse `yaml:"synapses" json:"synapses"`
	Actions  []ScenarioAction  `yaml:"actions" json:"actions"`
}

// ScenarioNeuron is placed either at an explicit cell or near an earlier neuron.
type ScenarioNeuron struct {
	Name string  `yaml:"name" json:"name"`
	Type string  `yaml:"type" json:"type"`
	At   []int64 `yaml:"at,flow,omitempty" json:"at,omitempty"`
	Near string  `yaml:"near,omitempty" json:"near,omitempty"`
}

type ScenarioSynapse struct {
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
	Strength *int   `yaml:"strength,omitempty" json:"strength,omitempty"`
}

// ScenarioAction sets exactly one of Charge, Inject, Step, Reward or Reinforce.
type ScenarioAction struct {
	Charge    string  `yaml:"charge,omitempty" json:"charge,omitempty"`
	Strength  int     `yaml:"strength,omitempty" json:"strength,omitempty"`
	Inject    string  `yaml:"inject,omitempty" json:"inject,omitempty"`
	Input     float64 `yaml:"input,omitempty" json:"input,omitempty"`
	Step      int     `yaml:"step,omitempty" json:"step,omitempty"`
	Reward    *bool   `yaml:"reward,omitempty" json:"reward,omitempty"`
	Amount    *int    `yaml:"amount,omitempty" json:"amount,omitempty"`
	Reinforce *bool   `yaml:"reinforce,omitempty" json:"reinforce,omitempty"`
}

const (
	ActionCharge    = "charge"
	ActionInject    = "inject"
	ActionStep      = "step"
	ActionReward    = "reward"
	ActionReinforce = "reinforce"
)

var ErrInvalidScenario = errors.New("invalid scenario")

func (a ScenarioAction) Kind() (string, error) {
	var kinds []string
	if a.Charge != "" {
		kinds = append(kinds, ActionCharge)
	}
	if a.Inject != "" {
		kinds = append(kinds, ActionInject)
	}
	if a.Step != 0 {
		kinds = append(kinds, ActionStep)
	}
	if a.Reward != nil {
		kinds = append(kinds, ActionReward)
	}
	if a.Reinforce != nil {
		kinds = append(kinds, ActionReinforce)
	}
	if len(kinds) != 1 {
		return "", fmt.Errorf("action must set exactly one of charge, inject, step, reward, reinforce (got %v)", kinds)
	}
	return kinds[0], nil
}

func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

func (s Scenario) Validate() error {
	names := make(map[string]model.NeuronType, len(s.Neurons))
	for i, n := range s.Neurons {
		if n.Name == "" {
			return fmt.Errorf("%w: neuron %d has no name", ErrInvalidScenario, i)
		}
		if _, dup := names[n.Name]; dup {
			return fmt.Errorf("%w: duplicate neuron name %q", ErrInvalidScenario, n.Name)
		}
		typ, err := model.ParseNeuronType(n.Type)
		if err != nil {
			return fmt.Errorf("%w: neuron %q: %v", ErrInvalidScenario, n.Name, err)
		}
		switch {
		case n.At != nil && n.Near != "":
			return fmt.Errorf("%w: neuron %q sets both at and near", ErrInvalidScenario, n.Name)
		case n.At != nil && len(n.At) != 3:
			return fmt.Errorf("%w: neuron %q: at needs three coordinates", ErrInvalidScenario, n.Name)
		case n.At == nil && n.Near == "":
			return fmt.Errorf("%w: neuron %q needs at or near", ErrInvalidScenario, n.Name)
		case n.Near != "":
			if _, ok := names[n.Near]; !ok {
				return fmt.Errorf("%w: neuron %q is near undeclared neuron %q", ErrInvalidScenario, n.Name, n.Near)
			}
		}
		names[n.Name] = typ
	}

	for i, syn := range s.Synapses {
		if _, ok := names[syn.From]; !ok {
			return fmt.Errorf("%w: synapse %d: unknown neuron %q", ErrInvalidScenario, i, syn.From)
		}
		if _, ok := names[syn.To]; !ok {
			return fmt.Errorf("%w: synapse %d: unknown neuron %q", ErrInvalidScenario, i, syn.To)
		}
		if syn.Strength != nil && (*syn.Strength < -nn.StrengthLimit || *syn.Strength > nn.StrengthLimit) {
			return fmt.Errorf("%w: synapse %d: strength %d out of range", ErrInvalidScenario, i, *syn.Strength)
		}
	}

	for i, a := range s.Actions {
		kind, err := a.Kind()
		if err != nil {
			return fmt.Errorf("%w: action %d: %v", ErrInvalidScenario, i, err)
		}
		switch kind {
		case ActionCharge:
			if _, ok := names[a.Charge]; !ok {
				return fmt.Errorf("%w: action %d: unknown neuron %q", ErrInvalidScenario, i, a.Charge)
			}
		case ActionInject:
			if _, ok := names[a.Inject]; !ok {
				return fmt.Errorf("%w: action %d: unknown neuron %q", ErrInvalidScenario, i, a.Inject)
			}
		case ActionStep:
			if a.Step < 0 {
				return fmt.Errorf("%w: action %d: step must be a positive tick count, got %d", ErrInvalidScenario, i, a.Step)
			}
		case ActionReward:
			if a.Amount != nil && *a.Amount < 0 {
				return fmt.Errorf("%w: action %d: amount must be >= 0", ErrInvalidScenario, i)
			}
		}
	}
	return nil
}

// NetworkConfig applies the scenario seed on top of base.
func (s Scenario) NetworkConfig(base network.Config) network.Config {
	if s.Seed != 0 {
		base.Seed = s.Seed
	}
	return base
}

type FiredName struct {
	Name     string             `json:"name"`
	ID       string             `json:"id"`
	Position model.CellPosition `json:"position"`
}

// Wave is the observable outcome of one scenario action.
type Wave struct {
	Index       int         `json:"index"`
	Kind        string      `json:"kind"`
	Target      string      `json:"target,omitempty"`
	Fired       []FiredName `json:"fired,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	RewardValue int         `json:"reward_value"`
}

type ScenarioResult struct {
	Neurons       map[string]string `json:"neurons"`
	Positions     map[string]string `json:"positions"`
	Waves         []Wave            `json:"waves"`
	RewardValue   int               `json:"reward_value"`
	RewardHistory []int             `json:"reward_history"`
	Stats         network.Stats     `json:"stats"`
}

// RunScenario builds the scenario's layout on the runtime's network and runs
// its actions in order. Each charge or inject waits for its wave to settle.
func (r *Runtime) RunScenario(ctx context.Context, sc Scenario) (ScenarioResult, error) {
	if err := sc.Validate(); err != nil {
		return ScenarioResult{}, err
	}
	nw, err := r.Network()
	if err != nil {
		return ScenarioResult{}, err
	}

	result := ScenarioResult{
		Neurons:   make(map[string]string, len(sc.Neurons)),
		Positions: make(map[string]string, len(sc.Neurons)),
	}
	names := make(map[string]string, len(sc.Neurons))
	positions := make(map[string]model.CellPosition, len(sc.Neurons))

	for _, decl := range sc.Neurons {
		typ, _ := model.ParseNeuronType(decl.Type)
		var id string
		if decl.At != nil {
			pos := model.CellPosition{X: decl.At[0], Y: decl.At[1], Z: decl.At[2]}
			id, err = nw.CreateNeuron(pos, typ)
		} else {
			id, err = nw.PlaceNearNeuron(ctx, positions[decl.Near], typ)
		}
		if err != nil {
			return result, fmt.Errorf("neuron %q: %w", decl.Name, err)
		}
		rec, _ := nw.Neuron(id)
		result.Neurons[decl.Name] = id
		result.Positions[decl.Name] = rec.Position.String()
		names[id] = decl.Name
		positions[decl.Name] = rec.Position
	}

	for _, syn := range sc.Synapses {
		strength := nw.Config().InitialStrength
		if syn.Strength != nil {
			strength = *syn.Strength
		}
		if _, err := nw.ConnectWithStrength(result.Neurons[syn.From], result.Neurons[syn.To], strength); err != nil {
			return result, fmt.Errorf("synapse %s->%s: %w", syn.From, syn.To, err)
		}
	}

	for i, action := range sc.Actions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		wave, err := r.runAction(ctx, nw, i, action, result.Neurons, names)
		if err != nil {
			return result, fmt.Errorf("action %d: %w", i, err)
		}
		result.Waves = append(result.Waves, wave)
		r.logger.Debug("scenario action", "index", i, "kind", wave.Kind, "fired", len(wave.Fired), "reward", wave.RewardValue)
	}

	result.RewardValue = nw.RewardValue()
	result.RewardHistory = r.RewardHistory()
	result.Stats = nw.Stats()
	return result, nil
}

func (r *Runtime) runAction(ctx context.Context, nw *network.Network, index int, action ScenarioAction, ids map[string]string, names map[string]string) (Wave, error) {
	kind, err := action.Kind()
	if err != nil {
		return Wave{}, err
	}
	wave := Wave{Index: index, Kind: kind}

	switch kind {
	case ActionCharge:
		wave.Target = action.Charge
		fired, err := nw.Stimulate(ctx, ids[action.Charge], action.Strength)
		if err != nil {
			return Wave{}, err
		}
		wave.Fired = namedFired(fired, names)
		wave.Detail = fmt.Sprintf("strength=%d", action.Strength)
	case ActionInject:
		wave.Target = action.Inject
		if err := nw.Inject(ids[action.Inject], action.Input); err != nil {
			return Wave{}, err
		}
		if err := nw.Settle(ctx); err != nil {
			return Wave{}, err
		}
		wave.Fired = namedFired(nw.FiredNeurons(), names)
		wave.Detail = fmt.Sprintf("input=%g", action.Input)
	case ActionStep:
		var last network.StepResult
		for i := 0; i < action.Step; i++ {
			last = r.step(nw)
		}
		wave.Detail = fmt.Sprintf("ticks=%d recovering=%d", action.Step, last.Recovering)
	case ActionReward:
		amount := 1
		if action.Amount != nil {
			amount = *action.Amount
		}
		if err := nw.ApplyReward(*action.Reward, amount); err != nil {
			return Wave{}, err
		}
		wave.Detail = nn.Reinforcement{Positive: *action.Reward, Amount: amount}.String()
	case ActionReinforce:
		applied, err := nw.Reinforce(*action.Reinforce)
		if err != nil {
			return Wave{}, err
		}
		wave.Detail = applied.String()
	}
	wave.RewardValue = nw.RewardValue()
	return wave, nil
}

func namedFired(fired []model.FiredNeuron, names map[string]string) []FiredName {
	out := make([]FiredName, 0, len(fired))
	for _, f := range fired {
		name, ok := names[f.ID]
		if !ok {
			name = f.ID
		}
		out = append(out, FiredName{Name: name, ID: f.ID, Position: f.Position})
	}
	return out
}

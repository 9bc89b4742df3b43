package model

import (
	"fmt"
	"strings"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// CellPosition is the grid address of a neuron.
type CellPosition struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
	Z int64 `json:"z" yaml:"z"`
}

func (p CellPosition) Add(dx, dy, dz int64) CellPosition {
	return CellPosition{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Chebyshev returns the shell distance between two cells.
func (p CellPosition) Chebyshev(o CellPosition) int64 {
	return max(absInt64(p.X-o.X), absInt64(p.Y-o.Y), absInt64(p.Z-o.Z))
}

func (p CellPosition) String() string {
	return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

type NeuronType string

const (
	NeuronGeneric NeuronType = "generic"
	NeuronReward  NeuronType = "reward"
	NeuronInput   NeuronType = "input"
	NeuronOutput  NeuronType = "output"
)

// Capability tags which side of a synapse a neuron type may sit on.
type Capability uint8

const (
	CanHaveParents Capability = 1 << iota
	CanHaveChildren
)

func (c Capability) Has(flag Capability) bool {
	return c&flag != 0
}

func (t NeuronType) Capabilities() Capability {
	switch t {
	case NeuronGeneric:
		return CanHaveParents | CanHaveChildren
	case NeuronInput:
		return CanHaveChildren
	case NeuronOutput, NeuronReward:
		return CanHaveParents
	default:
		return 0
	}
}

func (t NeuronType) Valid() bool {
	return t.Capabilities() != 0
}

func ParseNeuronType(raw string) (NeuronType, error) {
	t := NeuronType(strings.ToLower(strings.TrimSpace(raw)))
	if t == "" {
		return NeuronGeneric, nil
	}
	if t == "general" {
		return NeuronGeneric, nil
	}
	if !t.Valid() {
		return "", fmt.Errorf("unsupported neuron type: %s", raw)
	}
	return t, nil
}

type Phase string

const (
	PhaseResting    Phase = "resting"
	PhaseRefractory Phase = "refractory"
	PhaseRecovering Phase = "recovering"
)

// NeuronRecord is the read-only view of a neuron. Reward fields are set
// only for reward neurons; ChildSynapses is nil for types without children.
type NeuronRecord struct {
	ID                 string       `json:"id"`
	Position           CellPosition `json:"position"`
	Type               NeuronType   `json:"type"`
	Potential          float64      `json:"potential"`
	Input              float64      `json:"input"`
	FireThreshold      int          `json:"fire_threshold"`
	EffectiveThreshold int          `json:"effective_threshold"`
	ExhaustionLevel    int          `json:"exhaustion_level"`
	CanFire            bool         `json:"can_fire"`
	Phase              Phase        `json:"phase"`
	ParentSynapses     []string     `json:"parent_synapses"`
	ChildSynapses      []string     `json:"child_synapses,omitempty"`
	Cooldown           *int         `json:"cooldown,omitempty"`
	ReverseThreshold   *int         `json:"reverse_threshold,omitempty"`
}

type SynapseRecord struct {
	ID       string       `json:"id"`
	ParentID string       `json:"parent_id"`
	ChildID  string       `json:"child_id"`
	Parent   CellPosition `json:"parent"`
	Child    CellPosition `json:"child"`
	Strength int          `json:"strength"`
	Age      int          `json:"age"`
	Charged  bool         `json:"charged"`
}

// FiredNeuron is one entry of the fired list drained by the driver.
type FiredNeuron struct {
	ID       string       `json:"id"`
	Position CellPosition `json:"position"`
}

type NetworkSnapshot struct {
	VersionedRecord
	ID          string          `json:"id"`
	Label       string          `json:"label,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	RewardValue int             `json:"reward_value"`
	Neurons     []NeuronRecord  `json:"neurons"`
	Synapses    []SynapseRecord `json:"synapses"`
}

type SnapshotSummary struct {
	ID           string    `json:"id"`
	Label        string    `json:"label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	NeuronCount  int       `json:"neuron_count"`
	SynapseCount int       `json:"synapse_count"`
	RewardValue  int       `json:"reward_value"`
}

func (s NetworkSnapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		ID:           s.ID,
		Label:        s.Label,
		CreatedAt:    s.CreatedAt,
		NeuronCount:  len(s.Neurons),
		SynapseCount: len(s.Synapses),
		RewardValue:  s.RewardValue,
	}
}

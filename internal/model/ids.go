package model

import "github.com/google/uuid"

var (
	neuronNamespace  = uuid.MustParse("6c1f0f3e-93a4-5b37-9e52-2f6a0d3b7c11")
	synapseNamespace = uuid.MustParse("a83e5d0c-4f2b-5c61-8d7e-91b04c2e6f58")
)

// NeuronID derives a neuron's identity from its cell, so a neuron can never
// be relocated without changing identity.
func NeuronID(pos CellPosition) string {
	return uuid.NewSHA1(neuronNamespace, []byte(pos.String())).String()
}

// SynapseID derives a directed edge identity from the ordered endpoint cells.
func SynapseID(parent, child CellPosition) string {
	return uuid.NewSHA1(synapseNamespace, []byte(parent.String()+">"+child.String())).String()
}

func NewSnapshotID() string {
	return uuid.NewString()
}

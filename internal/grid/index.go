package grid

import "spikegrid/internal/model"

// Occupancy answers whether a cell is bound to a neuron.
type Occupancy interface {
	Occupied(pos model.CellPosition) bool
}

// Index is the occupied-position set. It is not synchronized; callers mutate
// it under the same critical section that inserts or removes the neuron.
type Index struct {
	cells map[model.CellPosition]struct{}
}

func NewIndex() *Index {
	return &Index{cells: make(map[model.CellPosition]struct{})}
}

func (i *Index) Occupied(pos model.CellPosition) bool {
	_, ok := i.cells[pos]
	return ok
}

// Reserve marks pos occupied and reports false if it already was.
func (i *Index) Reserve(pos model.CellPosition) bool {
	if _, ok := i.cells[pos]; ok {
		return false
	}
	i.cells[pos] = struct{}{}
	return true
}

func (i *Index) Release(pos model.CellPosition) {
	delete(i.cells, pos)
}

func (i *Index) Len() int {
	return len(i.cells)
}

func (i *Index) Positions() []model.CellPosition {
	out := make([]model.CellPosition, 0, len(i.cells))
	for pos := range i.cells {
		out = append(out, pos)
	}
	return out
}

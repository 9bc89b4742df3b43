package grid

import (
	"errors"
	"fmt"
	"math/rand"

	"spikegrid/internal/model"
)

var ErrShellSearchExhausted = errors.New("shell search exhausted")

// Shell describes one hollow cubic layer around a seed cell.
type Shell struct {
	ScaleLevel  int
	ScaleAmount int
	CubicVolume int
	LayerSize   int
}

func NewShell() Shell {
	return Shell{
		ScaleLevel:  1,
		ScaleAmount: 3,
		CubicVolume: 27,
		LayerSize:   26,
	}
}

func (s *Shell) Grow() {
	prevVolume := s.CubicVolume
	s.ScaleLevel++
	s.ScaleAmount += 2
	s.CubicVolume = s.ScaleAmount * s.ScaleAmount * s.ScaleAmount
	s.LayerSize = s.CubicVolume - prevVolume
}

// Walk visits every cell of the shell surface around seed: both X faces, then
// the YZ rings of the depths between them.
func (s Shell) Walk(seed model.CellPosition, visit func(model.CellPosition)) {
	level := int64(s.ScaleLevel)
	s.walkFace(seed.Add(level, level, level), visit)
	s.walkFace(seed.Add(-level, level, level), visit)
	s.walkRemainder(seed.Add(-level+1, level, level), visit)
}

// walkFace snakes across an X face starting at its (+Y,+Z) corner, running
// each row along Y and dropping one Z at the end of the row.
func (s Shell) walkFace(corner model.CellPosition, visit func(model.CellPosition)) {
	holder := corner
	visit(holder)
	remaining := s.ScaleAmount*s.ScaleAmount - 1
	countRow := s.ScaleAmount - 1
	reverse := false
	for remaining > 0 {
		if countRow > 0 {
			if reverse {
				holder.Y++
			} else {
				holder.Y--
			}
			countRow--
		} else {
			holder.Z--
			reverse = !reverse
			countRow = s.ScaleAmount - 1
		}
		visit(holder)
		remaining--
	}
}

type sweep int

const (
	sweepMinusY sweep = iota
	sweepMinusZ
	sweepPlusY
	sweepPlusZ
)

// walkRemainder covers the side strips. It walks the YZ ring one axis at a
// time, rotating through the four sweep directions, and steps one deeper in X
// each time the ring wraps.
func (s Shell) walkRemainder(start model.CellPosition, visit func(model.CellPosition)) {
	remaining := s.LayerSize - 2*s.ScaleAmount*s.ScaleAmount
	if remaining <= 0 {
		return
	}
	holder := start
	visit(holder)
	remaining--

	side := s.ScaleAmount - 1
	dir := sweepMinusY
	countSide := side
	for remaining > 0 {
		if countSide == 0 {
			dir++
			countSide = side
			if dir > sweepPlusZ {
				// Ring closed back on its first cell; move one deeper.
				dir = sweepMinusY
				holder.X++
				visit(holder)
				remaining--
				continue
			}
		}
		switch dir {
		case sweepMinusY:
			holder.Y--
		case sweepMinusZ:
			holder.Z--
		case sweepPlusY:
			holder.Y++
		case sweepPlusZ:
			holder.Z++
		}
		countSide--
		// The last +Z step lands on the ring's first cell, already visited.
		if dir == sweepPlusZ && countSide == 0 {
			continue
		}
		visit(holder)
		remaining--
	}
}

// OpenCells lists the unoccupied cells of the shell in walk order.
func (s Shell) OpenCells(seed model.CellPosition, occupancy Occupancy) []model.CellPosition {
	var open []model.CellPosition
	s.Walk(seed, func(pos model.CellPosition) {
		if !occupancy.Occupied(pos) {
			open = append(open, pos)
		}
	})
	return open
}

// Search returns a random unoccupied cell from the nearest shell around seed
// that has one. maxLevel <= 0 leaves shell growth unbounded.
func Search(seed model.CellPosition, occupancy Occupancy, rng *rand.Rand, maxLevel int) (model.CellPosition, Shell, error) {
	shell := NewShell()
	for {
		if maxLevel > 0 && shell.ScaleLevel > maxLevel {
			return model.CellPosition{}, shell, fmt.Errorf("%w: no open cell within %d shells of %s", ErrShellSearchExhausted, maxLevel, seed)
		}
		open := shell.OpenCells(seed, occupancy)
		if len(open) > 0 {
			if len(open) == 1 || rng == nil {
				return open[0], shell, nil
			}
			return open[rng.Intn(len(open))], shell, nil
		}
		shell.Grow()
	}
}

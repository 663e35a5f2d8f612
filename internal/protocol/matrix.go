package protocol

import (
	"fmt"
	"strings"
)

// LED board geometry.
const (
	GridRows       = 8
	GridCols       = 16
	MatrixFrameLen = GridRows * 2
)

// Grid is the LED board state. It is a value type: transforms return a new grid.
type Grid [GridRows][GridCols]bool

func inGrid(row, col int) bool {
	return row >= 0 && row < GridRows && col >= 0 && col < GridCols
}

// Set returns a copy of g with the cell at (row, col) set to on.
// Out of range coordinates leave the grid unchanged.
func (g Grid) Set(row, col int, on bool) Grid {
	if inGrid(row, col) {
		g[row][col] = on
	}
	return g
}

// Toggle returns a copy of g with the cell at (row, col) inverted.
func (g Grid) Toggle(row, col int) Grid {
	if inGrid(row, col) {
		g[row][col] = !g[row][col]
	}
	return g
}

// Flip returns g upside down: row r becomes row 7-r.
func (g Grid) Flip() Grid {
	var out Grid
	for r := 0; r < GridRows; r++ {
		out[GridRows-1-r] = g[r]
	}
	return out
}

// Lit counts the cells that are on.
func (g Grid) Lit() int {
	n := 0
	for r := range g {
		for c := range g[r] {
			if g[r][c] {
				n++
			}
		}
	}
	return n
}

func (g Grid) String() string {
	var sb strings.Builder
	for r := range g {
		for c := range g[r] {
			if g[r][c] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// EncodeMatrix serializes the grid into 16 bytes. Row r is written to bytes 2r
// (columns 0-7) and 2r+1 (columns 8-15); bit n of each byte is column n of its half.
func EncodeMatrix(g Grid) Frame {
	b := make([]byte, MatrixFrameLen)
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if g[r][c] {
				b[2*r+c/8] |= 1 << (c % 8)
			}
		}
	}
	return NewFrame(b...)
}

// DecodeMatrix is the inverse of EncodeMatrix. Extra trailing bytes are ignored.
func DecodeMatrix(b []byte) (Grid, error) {
	var g Grid
	if len(b) < MatrixFrameLen {
		return g, fmt.Errorf("matrix frame too short: got %d bytes, need %d", len(b), MatrixFrameLen)
	}
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			g[r][c] = b[2*r+c/8]&(1<<(c%8)) != 0
		}
	}
	return g, nil
}

// RotatedToGrid maps a cell of the rotated view (16 rows by 8 columns) to grid coordinates.
func RotatedToGrid(row, col int) (int, int) {
	return GridRows - 1 - col, row
}

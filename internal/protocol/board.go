package protocol

import "sync"

// Board is the editable LED board: a grid plus a cursor in view coordinates.
// In the rotated view the board is shown 16 rows by 8 columns.
// Board is safe for concurrent use.
type Board struct {
	mu      sync.Mutex
	grid    Grid
	rotated bool
	row     int
	col     int
}

func NewBoard() *Board {
	return &Board{}
}

// Grid returns a copy of the current grid.
func (b *Board) Grid() Grid {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grid
}

// Load replaces the grid, e.g. with the value read from the device.
func (b *Board) Load(g Grid) {
	b.mu.Lock()
	b.grid = g
	b.mu.Unlock()
}

// Reset turns every cell off.
func (b *Board) Reset() {
	b.Load(Grid{})
}

func (b *Board) Flip() {
	b.mu.Lock()
	b.grid = b.grid.Flip()
	b.mu.Unlock()
}

// ViewSize returns the number of rows and columns of the current view.
func (b *Board) ViewSize() (rows, cols int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewSize()
}

func (b *Board) viewSize() (int, int) {
	if b.rotated {
		return GridCols, GridRows
	}
	return GridRows, GridCols
}

func (b *Board) Rotated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rotated
}

// Rotate toggles the rotated view. The cursor is clamped to the new view.
func (b *Board) Rotate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotated = !b.rotated
	b.clampCursor()
}

// ToGrid maps view coordinates to grid coordinates.
func (b *Board) ToGrid(row, col int) (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.toGrid(row, col)
}

func (b *Board) toGrid(row, col int) (int, int) {
	if b.rotated {
		return RotatedToGrid(row, col)
	}
	return row, col
}

// ToggleView inverts the cell at view coordinates (row, col).
func (b *Board) ToggleView(row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, c := b.toGrid(row, col)
	b.grid = b.grid.Toggle(r, c)
}

// Cursor returns the cursor position in view coordinates.
func (b *Board) Cursor() (row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.row, b.col
}

// MoveCursor moves the cursor by the given offsets, staying inside the view.
func (b *Board) MoveCursor(dRow, dCol int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.row += dRow
	b.col += dCol
	b.clampCursor()
}

// ToggleCursor inverts the cell under the cursor.
func (b *Board) ToggleCursor() {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, c := b.toGrid(b.row, b.col)
	b.grid = b.grid.Toggle(r, c)
}

func (b *Board) clampCursor() {
	rows, cols := b.viewSize()
	b.row = max(0, min(b.row, rows-1))
	b.col = max(0, min(b.col, cols-1))
}

package grid

// GetGridCoords converts a row-major index into column and row.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// GetGridIndex converts column and row into a row-major index.
func GetGridIndex(x, y, cols int) int {
	return y*cols + x
}

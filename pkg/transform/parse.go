package transform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// parseTriple parses a comma-separated x,y,z list into a vector.
func parseTriple(s string) (r3.Vec, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return r3.Vec{}, fmt.Errorf("expected 3 components, got %d", len(parts))
	}

	var vals [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("component %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return r3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// parseMatrix decodes a JSON-encoded row-major 3x3 or 3x4 matrix.
func parseMatrix(s string) (*mat.Dense, error) {
	var rows [][]float64
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, err
	}
	if len(rows) != 3 {
		return nil, fmt.Errorf("expected 3 rows, got %d", len(rows))
	}

	cols := len(rows[0])
	if cols != 3 && cols != 4 {
		return nil, fmt.Errorf("expected 3 or 4 columns, got %d", cols)
	}

	flat := make([]float64, 0, 3*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i+1, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(3, cols, flat), nil
}

package memory

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is an embedding persisted as packed little-endian float32s.
type Vector []float32

func (Vector) GormDataType() string {
	return "bytes"
}

func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b, nil
}

func (v *Vector) Scan(src any) error {
	var b []byte
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		b = t
	case string:
		b = []byte(t)
	default:
		return fmt.Errorf("memory: cannot scan %T into Vector", src)
	}

	if len(b)%4 != 0 {
		return fmt.Errorf("memory: embedding blob has %d bytes, not a multiple of 4", len(b))
	}
	out := make(Vector, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	*v = out
	return nil
}

// cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either has zero magnitude.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

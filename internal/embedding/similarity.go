package embedding

import "math"

// Cosine computes the cosine similarity between two vectors, in [-1, 1].
// It returns exactly 0.0 when either vector has zero magnitude or when
// the dimensions do not match, rather than failing: a null or malformed
// embedding ranks a candidate out instead of aborting the request.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Float64s converts a float32 vector to float64, the shape the storage
// layer persists (Postgres float8 arrays).
func Float64s(v []float32) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Float32s converts a stored float64 vector back to float32.
func Float32s(v []float64) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

package hotword

// embeddingSize is the length of the resnet output vector.
const embeddingSize = 2048

// Keyword is one loaded model: its reference embeddings and the score a
// frame must exceed to fire it.
type Keyword struct {
	Name       string
	Embeddings [][]float32
	Threshold  float32
}

// ThresholdFor maps a sensitivity in [0,1] to a score threshold in [0.8,1].
// Higher sensitivity fires more easily.
func ThresholdFor(sensitivity float64) float32 {
	return float32(0.8 + 0.2*(1-sensitivity))
}

// Score is the best similarity of vec to any reference embedding, in [0,1].
func (k *Keyword) Score(vec []float32) float32 {
	if len(vec) != embeddingSize {
		return 0
	}
	var best float32
	for _, embedding := range k.Embeddings {
		if sim := (dotProduct(vec, embedding) + 1) / 2; sim > best {
			best = sim
		}
	}
	return best
}

func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

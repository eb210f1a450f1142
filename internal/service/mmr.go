package service

import "math"

// MMRSelect greedily selects up to k candidates from the top of
// candidates (already sorted by rerank score) maximizing
// lambda*cos(q,c) - (1-lambda)*max_{s in selected} cos(c,s).
// candidates must carry Embedding; queryVec is the query's
// own embedding. Only the first poolSize candidates are considered.
func MMRSelect(candidates []Candidate, queryVec []float32, k int, lambda float64, poolSize int) []Candidate {
	if poolSize > len(candidates) {
		poolSize = len(candidates)
	}
	pool := candidates[:poolSize]
	if k > len(pool) {
		k = len(pool)
	}

	selected := make([]Candidate, 0, k)
	chosen := make(map[int]bool, k)

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)

		for i, c := range pool {
			if chosen[i] {
				continue
			}
			relevance := cosineSim(queryVec, c.Embedding)
			redundancy := 0.0
			for _, s := range selected {
				sim := cosineSim(c.Embedding, s.Embedding)
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*relevance - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx < 0 {
			break
		}
		chosen[bestIdx] = true
		selected = append(selected, pool[bestIdx])
	}

	return selected
}

func cosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

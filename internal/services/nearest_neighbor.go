package services

import (
	"fleet-routing-service/internal/ports"
	"math"
)

// tieEpsilonMeters is how close two candidate legs must be to count as equal.
const tieEpsilonMeters = 0.5

// Build a visiting order with a greedy nearest-neighbor walk.
//
// Row/column 0 of m is the start; stop k lives at index k+1 and ids[k] is its id.
// The walk picks the shortest leg from the current position at each step;
// legs within tieEpsilonMeters of each other go to the lexicographically
// smaller id. The result lists stop indices (0-based into ids).
func nearestNeighborOrder(m ports.DistanceMatrix, ids []string) []int {
	n := len(ids)

	visited := make([]bool, n)
	order := make([]int, 0, n)
	current := 0

	for len(order) < n {
		best := -1
		bestDist := math.Inf(1)

		for k := range n {
			if visited[k] {
				continue
			}

			d := m[current][k+1].DistanceMeters
			switch {
			case best == -1, d < bestDist-tieEpsilonMeters:
				best, bestDist = k, d
			case math.Abs(d-bestDist) <= tieEpsilonMeters && ids[k] < ids[best]:
				// Tie-breaker keeps ordering deterministic when legs are equal.
				best, bestDist = k, d
			}
		}

		visited[best] = true
		order = append(order, best)
		current = best + 1
	}

	return order
}

// Improve order in place with adjacent-swap passes.
//
// A swap is kept only when it shortens the open path by more than
// tieEpsilonMeters. At most min(maxPasses, len(order)) passes run, each O(n),
// and the loop stops as soon as a pass makes no change.
func adjacentSwapImprove(m ports.DistanceMatrix, order []int, maxPasses int) {
	n := len(order)
	if n < 2 {
		return
	}

	passes := min(maxPasses, n)
	leg := func(from, to int) float64 { return m[from][to].DistanceMeters }

	for range passes {
		changed := false

		for k := 0; k+1 < n; k++ {
			prev := 0
			if k > 0 {
				prev = order[k-1] + 1
			}
			a, b := order[k]+1, order[k+1]+1

			before := leg(prev, a) + leg(a, b)
			after := leg(prev, b) + leg(b, a)
			if k+2 < n {
				next := order[k+2] + 1
				before += leg(b, next)
				after += leg(a, next)
			}

			if after < before-tieEpsilonMeters {
				order[k], order[k+1] = order[k+1], order[k]
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

// Sum the open path start -> order[0] -> ... -> order[n-1].
func pathTotals(m ports.DistanceMatrix, order []int) (meters, seconds float64) {
	current := 0
	for _, k := range order {
		r := m[current][k+1]
		meters += r.DistanceMeters
		seconds += r.DurationSeconds
		current = k + 1
	}
	return meters, seconds
}

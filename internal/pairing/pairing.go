// Package pairing produces next-round pairings for the two supported
// tournament strategies. Both generators are pure: given the same
// inputs (and rand source for Swiss) they return the same pairings.
package pairing

import (
	"math/rand"
	"slices"
	"sort"
)

// Pairing is an ordered match (White vs Black) or, with an empty Black,
// a bye for White.
type Pairing struct {
	White string
	Black string
}

func (p Pairing) Bye() bool {
	return p.Black == ""
}

// Swiss sorts players by descending cumulative score with a uniform
// random tiebreak, then greedily pairs each unpaired player with the
// next unpaired player below them who has not already played them.
// Anyone left without a first-fit opponent receives a bye. This greedy
// scan is deliberately not an optimal matching; it can strand a player
// even when a legal opponent exists further up the list.
func Swiss(players []string, scores map[string]float64, played func(a, b string) bool, rnd *rand.Rand) []Pairing {
	sorted := slices.Clone(players)
	rnd.Shuffle(len(sorted), func(i, j int) {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	})
	sort.SliceStable(sorted, func(i, j int) bool {
		return scores[sorted[i]] > scores[sorted[j]]
	})

	used := make(map[string]bool, len(sorted))
	pairings := make([]Pairing, 0, (len(sorted)+1)/2)
	for i, p := range sorted {
		if used[p] {
			continue
		}
		used[p] = true
		found := false
		for j := i + 1; j < len(sorted); j++ {
			q := sorted[j]
			if used[q] || played(p, q) {
				continue
			}
			used[q] = true
			pairings = append(pairings, Pairing{White: p, Black: q})
			found = true
			break
		}
		if !found {
			pairings = append(pairings, Pairing{White: p})
		}
	}
	return pairings
}

// RoundRobin implements the circle method: the first player stays
// fixed while the rest rotate one position per round. Odd rosters get a
// sentinel slot; whoever faces it that round has a bye. Rounds are
// 1-based.
func RoundRobin(players []string, round int) []Pairing {
	arr := slices.Clone(players)
	if len(arr)%2 == 1 {
		arr = append(arr, "")
	}
	for r := 1; r < round; r++ {
		rotated := make([]string, 0, len(arr))
		rotated = append(rotated, arr[0], arr[len(arr)-1])
		rotated = append(rotated, arr[1:len(arr)-1]...)
		arr = rotated
	}

	pairings := make([]Pairing, 0, len(arr)/2)
	for i := 0; i < len(arr)/2; i++ {
		p1, p2 := arr[i], arr[len(arr)-1-i]
		switch {
		case p1 != "" && p2 != "":
			pairings = append(pairings, Pairing{White: p1, Black: p2})
		case p1 != "":
			pairings = append(pairings, Pairing{White: p1})
		case p2 != "":
			pairings = append(pairings, Pairing{White: p2})
		}
	}
	return pairings
}

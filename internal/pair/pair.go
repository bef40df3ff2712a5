// Package pair implements the pairing engine: a pure, deterministic
// matcher that partitions image descriptors into stereo pairs and
// singles using timestamp proximity and perceptual-hash distance.
package pair

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"time"
)

// ErrDuplicatePath is returned by Match when two descriptors share a path.
var ErrDuplicatePath = errors.New("duplicate descriptor path")

// Descriptor identifies one candidate image. Path is the unique key.
// Hash is a fixed-width perceptual hash compared by Hamming distance;
// the engine does not care which algorithm produced it.
type Descriptor struct {
	Path      string
	Timestamp time.Time
	Hash      uint64
}

// Pair is an unordered pairing of two descriptors. A is always the
// earlier (anchor) descriptor in sorted order.
type Pair struct {
	A Descriptor
	B Descriptor
}

// Partition is the engine output: every input descriptor appears in
// exactly one Pair or exactly once in Singles.
type Partition struct {
	Pairs   []Pair
	Singles []Descriptor
}

// Distance returns the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Match greedily pairs descriptors whose timestamps differ by at most
// timeDeltaMax and whose hashes differ by at most hashDistanceMax bits
// (both inclusive). Descriptors are visited in timestamp order (ties
// broken by input order); each anchor takes the remaining forward
// candidate with the smallest hash distance, then the smallest
// timestamp delta, then the lowest index. The result is deterministic
// for identical input, and Match keeps no state between calls, so a
// previous Singles slice can be re-matched with looser thresholds.
func Match(descriptors []Descriptor, timeDeltaMax time.Duration, hashDistanceMax int) (Partition, error) {
	seen := make(map[string]struct{}, len(descriptors))
	for _, d := range descriptors {
		if _, dup := seen[d.Path]; dup {
			return Partition{}, fmt.Errorf("%w: %s", ErrDuplicatePath, d.Path)
		}
		seen[d.Path] = struct{}{}
	}

	sorted := make([]Descriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	part := Partition{Pairs: []Pair{}, Singles: []Descriptor{}}
	used := make([]bool, len(sorted))

	for i, anchor := range sorted {
		if used[i] {
			continue
		}

		best := -1
		bestDist := 0
		bestDelta := time.Duration(0)

		// Forward scan only: the slice is sorted, so any in-window
		// partner of a later anchor was already reachable from here.
		for j := i + 1; j < len(sorted); j++ {
			delta := sorted[j].Timestamp.Sub(anchor.Timestamp)
			if delta > timeDeltaMax {
				break
			}
			if used[j] {
				continue
			}
			dist := Distance(anchor.Hash, sorted[j].Hash)
			if dist > hashDistanceMax {
				continue
			}
			// Strict comparisons keep the lowest index on full ties,
			// since j only increases.
			if best == -1 || dist < bestDist || (dist == bestDist && delta < bestDelta) {
				best, bestDist, bestDelta = j, dist, delta
			}
		}

		if best >= 0 {
			used[i], used[best] = true, true
			part.Pairs = append(part.Pairs, Pair{A: anchor, B: sorted[best]})
		}
	}

	for i, d := range sorted {
		if !used[i] {
			part.Singles = append(part.Singles, d)
		}
	}
	return part, nil
}

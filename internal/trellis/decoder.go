// Package trellis implements the Viterbi-style decoder over the augmented
// state space {Known repeater} union {Unknown wildcard} (section 4.E): the
// critical algorithm that turns a lossy one-byte-prefix observation stream
// into the minimum-cost sequence of tagged path nodes.
package trellis

import (
	"errors"
	"fmt"
	"sort"

	"github.com/meshpath/reconstructor/internal/model"
	"github.com/meshpath/reconstructor/internal/network"
)

// Unknown-involved transition costs. The three are equal to within the
// epsilons below; the cost ordering is enter-unknown (Known->Unknown) <
// exit-unknown (Unknown->Known) < stay-unknown (Unknown->Unknown), so at
// equal nominal cost the decoder leaves Unknown rather than lingering in it
// (section 4.E, "Unknown-state tie-break constants").
const (
	costKnownToUnknown   = 8.0 - 2e-6
	costUnknownToKnown   = 8.0 - 1e-6
	costUnknownToUnknown = 8.0

	initialKnownBonus = -0.1
)

// DecodeError distinguishes the two failure modes section 7 calls out:
// the forward pass finding no finite-cost state at some step, and a
// broken back-pointer discovered during backtrack (an internal invariant
// violation that should never occur if the forward pass is correct).
type DecodeError struct {
	Step    int
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("trellis: %s at step %d", e.Message, e.Step)
}

// ErrBrokenBackpointer's text is used as the Message of the DecodeError
// returned when backtracking finds no recorded predecessor for a reachable
// state. DecodeError does not wrap it, so errors.Is does not match it.
var ErrBrokenBackpointer = errors.New("broken back-pointer during backtrack")

type cell struct {
	cost float64
	// pred is the predecessor state index, or unknownState for Unknown,
	// or predNone if this is the t=1 initial cell.
	pred int
}

const predNone = -2

// Decode runs the Viterbi recursion over observations against g and
// returns the minimum-cost PathNode sequence, one node per observation.
// An empty observation stream returns an empty path and no error. Returns
// a *DecodeError if no state has finite cost at some step, or if
// backtracking cannot find a predecessor (an internal invariant
// violation).
func Decode(g *network.Graph, observations []byte) ([]model.PathNode, error) {
	if len(observations) == 0 {
		return nil, nil
	}

	// The distinguished Unknown state occupies index N, one past the last
	// Known repeater index, per section 3's "state space has cardinality
	// N+1" and section 4.E's "index N is the distinguished Unknown state".
	unknownState := len(g.Repeaters)

	steps := make([]map[int]cell, len(observations))

	steps[0] = initialStep(g, observations[0], unknownState)
	if !anyFinite(steps[0]) {
		return nil, &DecodeError{Step: 1, Message: "decoder stuck at step t"}
	}

	for t := 1; t < len(observations); t++ {
		steps[t] = forwardStep(g, steps[t-1], observations[t], unknownState)
		if !anyFinite(steps[t]) {
			return nil, &DecodeError{Step: t + 1, Message: "decoder stuck at step t"}
		}
	}

	last := steps[len(steps)-1]
	bestState, bestCost := -3, 0.0
	first := true
	keys := sortedKeys(last)
	for _, s := range keys {
		c := last[s].cost
		if first || c < bestCost {
			bestCost = c
			bestState = s
			first = false
		}
	}

	path := make([]model.PathNode, len(observations))
	state := bestState
	for t := len(observations) - 1; t >= 0; t-- {
		c, ok := steps[t][state]
		if !ok {
			return nil, &DecodeError{Step: t + 1, Message: ErrBrokenBackpointer.Error()}
		}
		if state == unknownState {
			path[t] = model.Unknown(observations[t])
		} else {
			path[t] = model.Known(state)
		}
		if t > 0 {
			if c.pred == predNone {
				return nil, &DecodeError{Step: t + 1, Message: ErrBrokenBackpointer.Error()}
			}
			state = c.pred
		}
	}

	return path, nil
}

// initialStep seeds t=1: every Known repeater whose prefix matches o1
// starts at a small bonus over Unknown, Unknown starts at 0, everything
// else is unreachable (absent from the map).
func initialStep(g *network.Graph, o1 byte, unknownState int) map[int]cell {
	step := make(map[int]cell, len(g.ByPrefix[o1])+1)
	for _, k := range g.ByPrefix[o1] {
		step[k] = cell{cost: initialKnownBonus, pred: predNone}
	}
	step[unknownState] = cell{cost: 0, pred: predNone}
	return step
}

// forwardStep computes the reachable states at time t from the reachable
// states at t-1, keeping the minimum predecessor cost and back-pointer per
// state (section 4.E, "Forward recursion").
func forwardStep(g *network.Graph, prev map[int]cell, ot byte, unknownState int) map[int]cell {
	next := make(map[int]cell)

	relax := func(state int, cost float64, pred int) {
		if existing, ok := next[state]; !ok || cost < existing.cost {
			next[state] = cell{cost: cost, pred: pred}
		}
	}

	prevKeys := sortedKeys(prev)
	for _, s := range prevKeys {
		pc := prev[s]
		if s == unknownState {
			// Unknown -> Known(j) for every j with matching prefix.
			for _, j := range g.ByPrefix[ot] {
				relax(j, pc.cost+costUnknownToKnown, unknownState)
			}
			// Unknown -> Unknown.
			relax(unknownState, pc.cost+costUnknownToUnknown, unknownState)
			continue
		}

		// Known(i) -> Known(j) along adjacency, when prefix(j) == ot.
		for _, e := range g.Adjacency[s] {
			if g.Repeaters[e.J].Prefix == ot {
				relax(e.J, pc.cost+e.Cost, s)
			}
		}
		// Known(i) -> Unknown.
		relax(unknownState, pc.cost+costKnownToUnknown, s)
	}

	return next
}

func anyFinite(step map[int]cell) bool {
	return len(step) > 0
}

func sortedKeys(m map[int]cell) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

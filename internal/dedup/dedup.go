// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup collapses records of the same work gathered from different
// backends into one candidate per work and ranks the candidates.
//
// Records are clustered by the transitive closure of Similar: if A matches B
// and B matches C, all three land in one cluster even when A and C do not
// match directly. Each cluster keeps its best member as the representative
// and backfills that member's empty fields from the others. Clustering is
// repeated over representatives until none match, so Rank is idempotent.
package dedup

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/paperfinder/pkg/types"
)

// Rank deduplicates papers and orders the result best first. order is the
// routed backend order used to break ties between otherwise equal records.
// The input slice is not modified. One MergeDecision event is returned per
// cluster that merged more than one record.
func Rank(papers []types.Paper, order []string) ([]types.Paper, []types.Event) {
	if len(papers) == 0 {
		return nil, nil
	}

	pos := orderIndex(order)

	// Start from singletons and merge until no two representatives match.
	// A representative backfilled from several members can match a record
	// none of them matched alone, so one pass is not enough.
	groups := make([][]int, len(papers))
	for i := range papers {
		groups[i] = []int{i}
	}
	reps := representatives(papers, groups, pos)
	for {
		next, merged := regroup(reps, groups)
		if !merged {
			break
		}
		groups = next
		reps = representatives(papers, groups, pos)
	}

	type ranked struct {
		paper types.Paper
		key   rankKey
	}
	out := make([]ranked, 0, len(groups))
	var events []types.Event
	for i, members := range groups {
		first := members[0]
		for _, m := range members {
			if m < first {
				first = m
			}
		}
		out = append(out, ranked{paper: reps[i], key: keyOf(reps[i], first, pos)})
		if len(members) > 1 {
			events = append(events, mergeEvent(reps[i], papers, members))
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].key.less(out[b].key) })
	result := make([]types.Paper, len(out))
	for i, r := range out {
		result[i] = r.paper
	}
	return result, events
}

// representatives sorts each group best first in place and returns, per
// group, a clone of its best member backfilled from the others.
func representatives(papers []types.Paper, groups [][]int, pos map[string]int) []types.Paper {
	reps := make([]types.Paper, len(groups))
	for g, members := range groups {
		sort.SliceStable(members, func(a, b int) bool {
			return keyOf(papers[members[a]], members[a], pos).less(keyOf(papers[members[b]], members[b], pos))
		})
		rep := papers[members[0]].Clone()
		for _, m := range members[1:] {
			backfill(&rep, papers[m])
		}
		reps[g] = rep
	}
	return reps
}

// regroup unions groups whose representatives are Similar. Merged groups
// keep the position of their earliest group. It reports whether anything
// merged.
func regroup(reps []types.Paper, groups [][]int) ([][]int, bool) {
	sets := newDisjointSet(len(reps))
	merged := false
	for i := range reps {
		for j := i + 1; j < len(reps); j++ {
			if sets.find(i) != sets.find(j) && Similar(reps[i], reps[j]) {
				sets.union(i, j)
				merged = true
			}
		}
	}
	if !merged {
		return groups, false
	}
	var next [][]int
	byRoot := make(map[int]int)
	for i := range groups {
		root := sets.find(i)
		c, ok := byRoot[root]
		if !ok {
			c = len(next)
			byRoot[root] = c
			next = append(next, nil)
		}
		next[c] = append(next[c], groups[i]...)
	}
	return next, true
}

// rankKey is the representative and output priority of a record: venue
// quality, then completeness, then how early its best backend is routed,
// then input position.
type rankKey struct {
	venue     int
	populated int
	routed    int
	input     int
}

func keyOf(p types.Paper, input int, pos map[string]int) rankKey {
	routed := len(pos)
	for _, name := range p.Provenance {
		if i, ok := pos[name]; ok && i < routed {
			routed = i
		}
	}
	return rankKey{
		venue:     p.VenueKind.Rank(),
		populated: p.PopulatedFields(),
		routed:    routed,
		input:     input,
	}
}

// less reports whether k ranks ahead of o.
func (k rankKey) less(o rankKey) bool {
	if k.venue != o.venue {
		return k.venue > o.venue
	}
	if k.populated != o.populated {
		return k.populated > o.populated
	}
	if k.routed != o.routed {
		return k.routed < o.routed
	}
	return k.input < o.input
}

func orderIndex(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}
	return pos
}

// backfill copies src's values into rep's empty fields. Populated fields of
// rep are never overwritten; provenance is the union of both.
func backfill(rep *types.Paper, src types.Paper) {
	if len(rep.Authors) == 0 && len(src.Authors) > 0 {
		rep.Authors = append([]string(nil), src.Authors...)
	}
	if rep.Venue == "" {
		rep.Venue = src.Venue
		if rep.VenueKind == types.VenueUnknown {
			rep.VenueKind = src.VenueKind
		}
	}
	if rep.Year == 0 {
		rep.Year = src.Year
	}
	rep.Identifiers.Backfill(src.Identifiers)
	if rep.PDFURL == "" {
		rep.PDFURL = src.PDFURL
	}
	if rep.Abstract == "" {
		rep.Abstract = src.Abstract
	}
	rep.AddProvenance(src.Provenance...)
}

func mergeEvent(rep types.Paper, papers []types.Paper, members []int) types.Event {
	var merged []string
	for _, m := range members[1:] {
		kind := string(papers[m].VenueKind)
		if kind == "" {
			kind = "unknown"
		}
		merged = append(merged, strings.Join(papers[m].Provenance, "+")+"/"+kind)
	}
	kind := string(rep.VenueKind)
	if kind == "" {
		kind = "unknown"
	}
	return types.NewEvent(types.EventMergeDecision, "",
		"merged %d records into %q", len(members), rep.Title).
		With("records", strconv.Itoa(len(members))).
		With("kept", strings.Join(papers[members[0]].Provenance, "+")+"/"+kind).
		With("merged", strings.Join(merged, ","))
}

// disjointSet is a union-find over record indexes with path compression and
// union by rank.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	s := &disjointSet{parent: make([]int, n), rank: make([]int, n)}
	for i := range s.parent {
		s.parent[i] = i
	}
	return s
}

func (s *disjointSet) find(i int) int {
	for s.parent[i] != i {
		s.parent[i] = s.parent[s.parent[i]]
		i = s.parent[i]
	}
	return i
}

func (s *disjointSet) union(a, b int) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
}

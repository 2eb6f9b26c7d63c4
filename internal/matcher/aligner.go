// Package matcher aligns parsed records with gazetteer reference entries.
// Aligners score the pairs a blocker lets through; pipelines chain aligners
// from the tightest blocking to the loosest.
package matcher

import (
	"log/slog"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/blocking"
	"github.com/lehigh-university-libraries/placealign/internal/distance"
	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/normalize"
	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Pair links the item indexes of a reference record and its best target.
type Pair struct {
	Ref      int
	Target   int
	Distance float64
	Stage    string
}

// Aligner pairs every reference item with its closest target inside the
// blocks, keeping only distances within Threshold.
type Aligner struct {
	Name        string
	Blocking    blocking.Blocker
	Distance    distance.Func
	Threshold   float64
	RefField    blocking.Field
	TargetField blocking.Field
}

// Align returns at most one pair per reference, sorted by reference index.
// Equal distances go to the lowest target index.
func (a Aligner) Align(refs, targets []blocking.Item) []Pair {
	refByIndex := make(map[int]blocking.Item, len(refs))
	for _, it := range refs {
		refByIndex[it.Index] = it
	}
	targetByIndex := make(map[int]blocking.Item, len(targets))
	for _, it := range targets {
		targetByIndex[it.Index] = it
	}

	best := make(map[int]Pair)
	for _, b := range a.Blocking.Block(refs, targets) {
		for _, ri := range b.Refs {
			ref := refByIndex[ri].Field(a.RefField)
			for _, ti := range b.Targets {
				d := a.Distance(ref, targetByIndex[ti].Field(a.TargetField))
				if d > a.Threshold {
					continue
				}
				cur, ok := best[ri]
				if !ok || d < cur.Distance || (d == cur.Distance && ti < cur.Target) {
					best[ri] = Pair{Ref: ri, Target: ti, Distance: d, Stage: a.Name}
				}
			}
		}
	}

	pairs := make([]Pair, 0, len(best))
	for _, p := range best {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Ref < pairs[j].Ref })
	return pairs
}

// PipelineAligner runs aligners in order. A reference matched by one aligner
// is not offered to the next.
type PipelineAligner struct {
	Aligners []Aligner
	Log      *slog.Logger
}

func (p PipelineAligner) Align(refs, targets []blocking.Item) []Pair {
	var pairs []Pair
	remaining := refs
	for _, a := range p.Aligners {
		if len(remaining) == 0 {
			break
		}
		found := a.Align(remaining, targets)
		if p.Log != nil {
			p.Log.Debug("Aligner done", "stage", a.Name, "refs", len(remaining), "matches", len(found))
		}
		if len(found) == 0 {
			continue
		}
		matched := make(map[int]bool, len(found))
		for _, pair := range found {
			matched[pair.Ref] = true
		}
		pairs = append(pairs, found...)

		next := make([]blocking.Item, 0, len(remaining)-len(found))
		for _, it := range remaining {
			if !matched[it.Index] {
				next = append(next, it)
			}
		}
		remaining = next
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Ref < pairs[j].Ref })
	return pairs
}

// CandidatePair is an alignment proposal.
type CandidatePair struct {
	Record   records.ParsedRecord   `yaml:"record"`
	Entry    geodata.ReferenceEntry `yaml:"entry"`
	Distance float64                `yaml:"distance"`
	Stage    string                 `yaml:"stage,omitempty"`
}

// Confidence is 1 - Distance.
func (c CandidatePair) Confidence() float64 { return 1 - c.Distance }

// RecordItems builds the blocking view of records: simplified core names and
// comparison labels.
func RecordItems(recs []records.ParsedRecord) []blocking.Item {
	items := make([]blocking.Item, len(recs))
	for i, r := range recs {
		items[i] = blocking.Item{
			Index:   i,
			Name:    normalize.Simplify(r.CoreName),
			Label:   normalize.Simplify(r.ComparisonLabel),
			Context: r.Context,
		}
	}
	return items
}

// EntryItems builds the blocking view of reference entries.
func EntryItems(entries []geodata.ReferenceEntry) []blocking.Item {
	items := make([]blocking.Item, len(entries))
	for i, e := range entries {
		items[i] = blocking.Item{
			Index:   i,
			Name:    normalize.Simplify(e.Name),
			Label:   normalize.Simplify(e.ComparisonLabel),
			Context: e.Context,
		}
	}
	return items
}

func candidates(pairs []Pair, recs []records.ParsedRecord, entries []geodata.ReferenceEntry) []CandidatePair {
	out := make([]CandidatePair, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, CandidatePair{
			Record:   recs[p.Ref],
			Entry:    entries[p.Target],
			Distance: p.Distance,
			Stage:    p.Stage,
		})
	}
	return out
}

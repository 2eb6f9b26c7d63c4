// Package blocking narrows the pairs an aligner scores. A blocker groups
// reference and target items into blocks; only pairs inside a block are
// compared.
package blocking

import (
	"log/slog"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
)

// Field selects which string of an item a blocker or distance reads.
type Field int

const (
	// Name is the simplified core name.
	Name Field = iota
	// Label is the simplified comparison label.
	Label
)

func (f Field) String() string {
	if f == Label {
		return "label"
	}
	return "name"
}

// Item is the view blockers have of a record or a reference entry. Index is
// the item's position in the caller's slice and identifies it in blocks.
type Item struct {
	Index   int
	Name    string
	Label   string
	Context geodata.Context
}

// Field returns the requested string.
func (it Item) Field(f Field) string {
	if f == Label {
		return it.Label
	}
	return it.Name
}

// Block lists the indexes of reference and target items that may match.
type Block struct {
	Refs    []int
	Targets []int
}

// Blocker splits items into blocks. Blocks with an empty side are dropped.
type Blocker interface {
	Block(refs, targets []Item) []Block
}

// Key groups items sharing a context key.
type Key struct {
	Name string
	// Fn returns the key of a context; ok=false leaves the item out.
	Fn func(geodata.Context) (key string, ok bool)
}

func (k Key) Block(refs, targets []Item) []Block {
	byKey := make(map[string]*Block)
	var keys []string
	add := func(items []Item, ref bool) {
		for _, it := range items {
			key, ok := k.Fn(it.Context)
			if !ok {
				continue
			}
			b, exists := byKey[key]
			if !exists {
				b = &Block{}
				byKey[key] = b
				keys = append(keys, key)
			}
			if ref {
				b.Refs = append(b.Refs, it.Index)
			} else {
				b.Targets = append(b.Targets, it.Index)
			}
		}
	}
	add(refs, true)
	add(targets, false)

	sort.Strings(keys)
	blocks := make([]Block, 0, len(keys))
	for _, key := range keys {
		if b := byKey[key]; len(b.Refs) > 0 && len(b.Targets) > 0 {
			blocks = append(blocks, *b)
		}
	}
	return blocks
}

// DepartmentCity keys on the (department, city) pair. Empty values are part
// of the key, so a record without context meets entries without context.
func DepartmentCity() Key {
	return Key{Name: "department+city", Fn: func(c geodata.Context) (string, bool) {
		return c.Department + "\x00" + c.City, true
	}}
}

// Department keys on the department, ignoring items without one.
func Department() Key {
	return Key{Name: "department", Fn: func(c geodata.Context) (string, bool) {
		return c.Department, c.Department != ""
	}}
}

// Country keys on the simplified country name, ignoring items without one.
func Country() Key {
	return Key{Name: "country", Fn: func(c geodata.Context) (string, bool) {
		return c.Country, c.Country != ""
	}}
}

// FeatureClass keys on the feature class. Items without a class share the
// empty key.
func FeatureClass() Key {
	return Key{Name: "feature class", Fn: func(c geodata.Context) (string, bool) {
		return c.FeatureClass, true
	}}
}

// Pipeline refines blocks stage by stage: each stage only sees the items of
// one block of the previous stage.
type Pipeline struct {
	Stages []Blocker
	Log    *slog.Logger
}

func (p Pipeline) Block(refs, targets []Item) []Block {
	refByIndex := indexItems(refs)
	targetByIndex := indexItems(targets)

	blocks := []Block{{Refs: indexes(refs), Targets: indexes(targets)}}
	for i, stage := range p.Stages {
		var next []Block
		for _, b := range blocks {
			next = append(next, stage.Block(pick(refByIndex, b.Refs), pick(targetByIndex, b.Targets))...)
		}
		blocks = next
		if p.Log != nil {
			count, maxRefs, maxTargets := Stats(blocks)
			p.Log.Debug("Blocking stage done", "stage", i, "blocks", count, "max_refs", maxRefs, "max_targets", maxTargets)
		}
		if len(blocks) == 0 {
			break
		}
	}
	return blocks
}

// Stats returns the number of blocks and the largest block sides.
func Stats(blocks []Block) (count, maxRefs, maxTargets int) {
	for _, b := range blocks {
		maxRefs = max(maxRefs, len(b.Refs))
		maxTargets = max(maxTargets, len(b.Targets))
	}
	return len(blocks), maxRefs, maxTargets
}

func indexItems(items []Item) map[int]Item {
	m := make(map[int]Item, len(items))
	for _, it := range items {
		m[it.Index] = it
	}
	return m
}

func indexes(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.Index
	}
	return out
}

func pick(m map[int]Item, idx []int) []Item {
	out := make([]Item, 0, len(idx))
	for _, i := range idx {
		out = append(out, m[i])
	}
	return out
}

package blocking

import (
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
)

func item(i int, name string, ctx geodata.Context) Item {
	return Item{Index: i, Name: name, Label: name, Context: ctx}
}

func TestKeyBlocking(t *testing.T) {
	refs := []Item{
		item(0, "toulon", geodata.Context{Department: "var", City: "toulon"}),
		item(1, "givry", geodata.Context{Department: "saone et loire"}),
		item(2, "reunion", geodata.Context{}),
	}
	targets := []Item{
		item(10, "toulon", geodata.Context{Department: "var", City: "toulon"}),
		item(11, "hyeres", geodata.Context{Department: "var", City: "hyeres"}),
		item(12, "givry", geodata.Context{Department: "saone et loire", City: "givry"}),
		item(13, "reunion", geodata.Context{}),
	}

	tests := []struct {
		name     string
		key      Key
		expected []Block
	}{
		{
			name: "department and city",
			key:  DepartmentCity(),
			expected: []Block{
				{Refs: []int{2}, Targets: []int{13}},
				{Refs: []int{0}, Targets: []int{10}},
			},
		},
		{
			name: "department ignores empty keys",
			key:  Department(),
			expected: []Block{
				{Refs: []int{1}, Targets: []int{12}},
				{Refs: []int{0}, Targets: []int{10, 11}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.Block(refs, targets)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNGram(t *testing.T) {
	refs := []Item{item(0, "toulouse", geodata.Context{}), item(1, "brest", geodata.Context{}), item(2, "", geodata.Context{})}
	targets := []Item{item(5, "toulon", geodata.Context{}), item(6, "tours", geodata.Context{}), item(7, "toulouse", geodata.Context{})}

	got := NGram{Size: 4, Depth: 1}.Block(refs, targets)
	expected := []Block{{Refs: []int{0}, Targets: []int{5, 7}}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	got = NGram{Size: 3, Depth: 1}.Block(refs, targets)
	expected = []Block{{Refs: []int{0}, Targets: []int{5, 6, 7}}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestBanding(t *testing.T) {
	bands, rows := Banding(0.4)
	if bands*rows > Permutations {
		t.Errorf("Expected at most %d rows in total, got %d", Permutations, bands*rows)
	}
	if bands != 21 || rows != 3 {
		t.Errorf("Expected 21 bands of 3 rows, got %d of %d", bands, rows)
	}
}

func TestSignature(t *testing.T) {
	a, ok := Signature("saint jean d angely")
	if !ok {
		t.Fatal("Expected a signature")
	}
	b, _ := Signature("saint jean d angely")
	if a != b {
		t.Error("Expected deterministic signatures")
	}
	if sim := Similarity(a, b); sim != 1 {
		t.Errorf("Expected similarity 1, got %f", sim)
	}

	c, _ := Signature("marseille")
	if sim := Similarity(a, c); sim > 0.3 {
		t.Errorf("Expected unrelated strings to differ, got %f", sim)
	}
	if _, ok := Signature(""); ok {
		t.Error("Expected no signature for an empty string")
	}
}

func TestShingles(t *testing.T) {
	if got := Shingles("paris"); !reflect.DeepEqual(got, []string{"par", "ari", "ris"}) {
		t.Errorf("Unexpected shingles %v", got)
	}
	if got := Shingles("ay"); !reflect.DeepEqual(got, []string{"ay"}) {
		t.Errorf("Unexpected shingles %v", got)
	}
}

func TestMinHash(t *testing.T) {
	refs := []Item{item(0, "saint jean d angely", geodata.Context{}), item(1, "zzz", geodata.Context{})}
	targets := []Item{
		item(3, "marseille", geodata.Context{}),
		item(4, "saint jean d angely", geodata.Context{}),
	}

	blocks := MinHash{Threshold: 0.4}.Block(refs, targets)
	if len(blocks) != 1 {
		t.Fatalf("Expected one block, got %v", blocks)
	}
	if !reflect.DeepEqual(blocks[0].Refs, []int{0}) {
		t.Errorf("Expected ref 0, got %v", blocks[0].Refs)
	}
	found := false
	for _, idx := range blocks[0].Targets {
		if idx == 4 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected identical strings to share a block, got %v", blocks[0].Targets)
	}
}

func TestPipeline(t *testing.T) {
	refs := []Item{
		item(0, "toulon", geodata.Context{Department: "var"}),
		item(1, "givry", geodata.Context{Department: "saone et loire"}),
	}
	targets := []Item{
		item(10, "toulon", geodata.Context{Department: "var"}),
		item(11, "tourves", geodata.Context{Department: "var"}),
		item(12, "toulon sur arroux", geodata.Context{Department: "saone et loire"}),
	}

	p := Pipeline{Stages: []Blocker{Department(), NGram{Size: 4, Depth: 1}}}
	got := p.Block(refs, targets)
	expected := []Block{{Refs: []int{0}, Targets: []int{10}}}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	count, maxRefs, maxTargets := Stats(got)
	if count != 1 || maxRefs != 1 || maxTargets != 1 {
		t.Errorf("Unexpected stats %d %d %d", count, maxRefs, maxTargets)
	}
}

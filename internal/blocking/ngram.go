package blocking

import "sort"

// NGram groups items sharing their leading n-grams: with Size 3 and Depth 1,
// "toulouse" and "toulon" share the block "tou".
type NGram struct {
	Size        int
	Depth       int
	RefField    Field
	TargetField Field
}

func (n NGram) Block(refs, targets []Item) []Block {
	size, depth := n.Size, n.Depth
	if size <= 0 {
		size = 3
	}
	if depth <= 0 {
		depth = 1
	}

	byKey := make(map[string]*Block)
	key := func(s string) (string, bool) {
		r := []rune(s)
		if len(r) == 0 {
			return "", false
		}
		return string(r[:min(len(r), size*depth)]), true
	}
	for _, it := range refs {
		k, ok := key(it.Field(n.RefField))
		if !ok {
			continue
		}
		b := byKey[k]
		if b == nil {
			b = &Block{}
			byKey[k] = b
		}
		b.Refs = append(b.Refs, it.Index)
	}
	for _, it := range targets {
		k, ok := key(it.Field(n.TargetField))
		if !ok {
			continue
		}
		if b := byKey[k]; b != nil {
			b.Targets = append(b.Targets, it.Index)
		}
	}

	keys := make([]string, 0, len(byKey))
	for k, b := range byKey {
		if len(b.Targets) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	blocks := make([]Block, 0, len(keys))
	for _, k := range keys {
		blocks = append(blocks, *byKey[k])
	}
	return blocks
}

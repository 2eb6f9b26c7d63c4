package blocking

import (
	"hash/fnv"
	"math"
	"math/bits"
	"sort"
	"strconv"
)

const (
	// Permutations is the MinHash signature length.
	Permutations = 64
	shingleSize  = 3
	mersenne61   = (1 << 61) - 1
)

// coefficients of the universal hashes h(x) = (a*x + b) mod p, drawn once
// from a fixed seed so signatures are stable across runs
var coefficients = func() [Permutations][2]uint64 {
	var out [Permutations][2]uint64
	state := uint64(0x5eed)
	next := func() uint64 {
		// splitmix64
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		return z ^ (z >> 31)
	}
	for i := range out {
		out[i] = [2]uint64{next()%(mersenne61-1) + 1, next() % mersenne61}
	}
	return out
}()

// MinHash blocks items whose character shingles are likely to have a
// Jaccard similarity of at least Threshold, using locality sensitive
// hashing over MinHash signatures. Each reference gets its own block with
// its candidate targets.
type MinHash struct {
	Threshold   float64
	RefField    Field
	TargetField Field
}

func (m MinHash) Block(refs, targets []Item) []Block {
	bands, rows := Banding(m.Threshold)

	buckets := make(map[string][]int)
	for _, it := range targets {
		sig, ok := Signature(it.Field(m.TargetField))
		if !ok {
			continue
		}
		for band := 0; band < bands; band++ {
			k := bandKey(sig, band, rows)
			buckets[k] = append(buckets[k], it.Index)
		}
	}

	var blocks []Block
	for _, it := range refs {
		sig, ok := Signature(it.Field(m.RefField))
		if !ok {
			continue
		}
		seen := make(map[int]bool)
		var candidates []int
		for band := 0; band < bands; band++ {
			for _, t := range buckets[bandKey(sig, band, rows)] {
				if !seen[t] {
					seen[t] = true
					candidates = append(candidates, t)
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Ints(candidates)
		blocks = append(blocks, Block{Refs: []int{it.Index}, Targets: candidates})
	}
	return blocks
}

// Banding picks bands*rows <= Permutations so that the LSH threshold
// (1/bands)^(1/rows) is as close as possible to threshold.
func Banding(threshold float64) (bands, rows int) {
	if threshold <= 0 {
		return Permutations, 1
	}
	best := math.Inf(1)
	for r := 1; r <= Permutations; r++ {
		b := Permutations / r
		t := math.Pow(1/float64(b), 1/float64(r))
		if d := math.Abs(t - threshold); d < best {
			best, bands, rows = d, b, r
		}
	}
	return bands, rows
}

// Signature computes the MinHash signature of the 3-character shingles of s.
func Signature(s string) ([Permutations]uint64, bool) {
	var sig [Permutations]uint64
	shingles := Shingles(s)
	if len(shingles) == 0 {
		return sig, false
	}
	for i := range sig {
		sig[i] = math.MaxUint64
	}
	for _, sh := range shingles {
		h := fnv.New64a()
		h.Write([]byte(sh))
		x := h.Sum64() % mersenne61
		for i, c := range coefficients {
			v := mulmod(c[0], x) + c[1]
			v %= mersenne61
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig, true
}

// Shingles returns the distinct character n-grams of s. Strings shorter
// than a shingle are their own single shingle.
func Shingles(s string) []string {
	r := []rune(s)
	if len(r) == 0 {
		return nil
	}
	if len(r) <= shingleSize {
		return []string{s}
	}
	seen := make(map[string]bool, len(r))
	out := make([]string, 0, len(r)-shingleSize+1)
	for i := 0; i+shingleSize <= len(r); i++ {
		sh := string(r[i : i+shingleSize])
		if !seen[sh] {
			seen[sh] = true
			out = append(out, sh)
		}
	}
	return out
}

// Similarity estimates the Jaccard similarity of two signatures.
func Similarity(a, b [Permutations]uint64) float64 {
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / Permutations
}

func bandKey(sig [Permutations]uint64, band, rows int) string {
	buf := make([]byte, 0, 8+rows*17)
	buf = strconv.AppendInt(buf, int64(band), 10)
	for _, v := range sig[band*rows : (band+1)*rows] {
		buf = append(buf, ':')
		buf = strconv.AppendUint(buf, v, 16)
	}
	return string(buf)
}

// mulmod computes a*x mod 2^61-1 without overflow.
func mulmod(a, x uint64) uint64 {
	hi, lo := bits.Mul64(a, x)
	// a*x = hi*2^64 + lo, and 2^64 = 8 mod p, 2^61 = 1 mod p
	v := (lo & mersenne61) + (lo >> 61) + (hi << 3)
	v = (v & mersenne61) + (v >> 61)
	if v >= mersenne61 {
		v -= mersenne61
	}
	return v
}

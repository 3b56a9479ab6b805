package digest

import (
	"math/rand/v2"
	"testing"
)

func fold(vs []int32) Multiset {
	var m Multiset
	for _, v := range vs {
		m.Add(v)
	}
	return m
}

func TestMultisetOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	vs := make([]int32, 1000)
	for i := range vs {
		vs[i] = int32(rng.Uint32())
	}
	want := fold(vs)
	rng.Shuffle(len(vs), func(i, j int) { vs[i], vs[j] = vs[j], vs[i] })
	if got := fold(vs); got != want {
		t.Fatalf("shuffled digest %+v != %+v", got, want)
	}
}

func TestMultisetDistinguishes(t *testing.T) {
	tests := []struct {
		name string
		a, b []int32
	}{
		{"dropped_value", []int32{1, 2, 3}, []int32{1, 2}},
		{"changed_value", []int32{1, 2, 3}, []int32{1, 2, 4}},
		{"duplicate_swapped", []int32{5, 5, 7}, []int32{5, 7, 7}},
		{"sign", []int32{-1}, []int32{1}},
	}
	for _, tc := range tests {
		if fold(tc.a) == fold(tc.b) {
			t.Errorf("%s: digests collide", tc.name)
		}
	}
}

func TestMultisetMerge(t *testing.T) {
	a := fold([]int32{1, 2})
	b := fold([]int32{3, -3})
	a.Merge(b)
	if want := fold([]int32{3, 1, -3, 2}); a != want {
		t.Fatalf("merged %+v, want %+v", a, want)
	}
	var zero Multiset
	zero.Merge(Multiset{})
	if zero != (Multiset{}) {
		t.Fatalf("merge of empty digests = %+v", zero)
	}
}

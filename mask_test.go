package gdtcpus

import (
	"testing"

	"github.com/shoenig/test/must"
)

func TestAffinityMask_InsertContains(t *testing.T) {
	var m AffinityMask
	must.True(t, m.IsEmpty())
	must.False(t, m.Contains(0))

	m.Insert(3)
	m.Insert(200) // forces growth past three words
	must.True(t, m.Contains(3))
	must.True(t, m.Contains(200))
	must.False(t, m.Contains(4))
	must.False(t, m.Contains(4096)) // beyond stored length, no error
	must.Eq(t, 2, m.Count())
	must.Eq(t, 4, m.Len())
}

func TestAffinityMask_Indices(t *testing.T) {
	m := NewAffinityMask(0, 1, 2, 3, 7, 10, 11)
	must.Eq(t, []int{0, 1, 2, 3, 7, 10, 11}, m.Indices())
	must.Eq(t, 7, m.Count())

	// Round trip through the index list.
	must.True(t, m.Equal(NewAffinityMask(m.Indices()...)))
}

func TestAffinityMask_Display(t *testing.T) {
	tests := []struct {
		name string
		mask AffinityMask
		want string
	}{
		{"empty", NewAffinityMask(), ""},
		{"single", NewAffinityMask(5), "5"},
		{"runs and singles", NewAffinityMask(0, 1, 2, 3, 7, 10, 11), "0-3,7,10-11"},
		{"cross word boundary", MaskFromRange(60, 70), "60-70"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			must.Eq(t, tt.want, tt.mask.String())

			parsed, err := ParseMask(tt.mask.String())
			must.NoError(t, err)
			must.True(t, parsed.Equal(tt.mask))
		})
	}
}

func TestParseMask_Bad(t *testing.T) {
	for _, s := range []string{"a", "1-", "-3", "3-1", "1,,2"} {
		_, err := ParseMask(s)
		must.Error(t, err)
	}
}

func TestAffinityMask_SetAlgebra(t *testing.T) {
	a := NewAffinityMask(0, 1, 65, 130)
	b := NewAffinityMask(1, 2, 65)
	c := NewAffinityMask(2, 130)

	// Commutativity.
	must.True(t, a.Union(b).Equal(b.Union(a)))
	must.True(t, a.Intersect(b).Equal(b.Intersect(a)))

	// Associativity.
	must.True(t, a.Union(b).Union(c).Equal(a.Union(b.Union(c))))
	must.True(t, a.Intersect(b).Intersect(c).Equal(a.Intersect(b.Intersect(c))))

	// Idempotence.
	must.True(t, a.Union(a).Equal(a))
	must.True(t, a.Intersect(a).Equal(a))

	// Distributivity.
	must.True(t, a.Intersect(b.Union(c)).Equal(a.Intersect(b).Union(a.Intersect(c))))

	// Difference.
	must.Eq(t, []int{0, 130}, a.Difference(b).Indices())

	// Result width is the wider input; trailing zero words allowed.
	must.Eq(t, a.Len(), a.Intersect(b).Len())
}

func TestAffinityMask_EqualIgnoresTrailingZeros(t *testing.T) {
	a := NewAffinityMask(1)
	b := MaskFromWords([]uint64{2, 0, 0})
	must.True(t, a.Equal(b))
	must.True(t, b.Equal(a))
	must.False(t, a.Equal(NewAffinityMask(2)))
}

func TestMaskFromWords_Copies(t *testing.T) {
	words := []uint64{1}
	m := MaskFromWords(words)
	words[0] = 0
	must.True(t, m.Contains(0))
}

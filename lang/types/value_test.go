package types_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/microvium/lang/types"
)

func TestValueTruth(t *testing.T) {
	cases := []struct {
		name string
		v    types.Value
		want bool
	}{
		{"undefined", types.Undefined, false},
		{"null", types.Null, false},
		{"false", types.Bool(false), false},
		{"true", types.Bool(true), true},
		{"zero", types.Number(0), false},
		{"negZero", types.Number(math.Copysign(0, -1)), false},
		{"nan", types.Number(math.NaN()), false},
		{"nonzero", types.Number(1), true},
		{"emptyString", types.String(""), false},
		{"nonEmptyString", types.String("x"), true},
		{"reference", types.Reference(1), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.Truth())
		})
	}
}

func TestValueStrictEqualsZeroSignsEqualNaNUnequal(t *testing.T) {
	posZero := types.Number(0)
	negZero := types.Number(math.Copysign(0, -1))
	assert.True(t, types.StrictEquals(posZero, negZero))

	nan := types.Number(math.NaN())
	assert.False(t, types.StrictEquals(nan, nan))

	assert.False(t, types.StrictEquals(types.Undefined, types.Null))
	assert.True(t, types.StrictEquals(types.String("a"), types.String("a")))
	assert.False(t, types.StrictEquals(types.String("a"), types.String("b")))
}

func TestValueKindAccessorsPanicOnMismatch(t *testing.T) {
	v := types.Number(1)
	assert.Panics(t, func() { v.AsString() })
	assert.NotPanics(t, func() { v.AsNumber() })
}

func TestLogicalAddressRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		section types.SectionTag
		offset  uint16
	}{
		{types.SectionInt, 0},
		{types.SectionGCHeap, 1234},
		{types.SectionDataP, 0x3FFF},
		{types.SectionPgmP, 42},
	} {
		addr := types.EncodeLogicalAddress(tc.section, tc.offset)
		gotSection, gotOffset := types.DecodeLogicalAddress(addr)
		assert.Equal(t, tc.section, gotSection)
		assert.Equal(t, tc.offset, gotOffset)
	}
}

func TestInlineIntRoundTrip(t *testing.T) {
	for _, n := range []int32{0, 1, -1, types.MinInlineInt, types.MaxInlineInt, -100, 100} {
		enc := types.EncodeInlineInt(n)
		assert.Equal(t, n, types.DecodeInlineInt(enc))
	}
}

func TestInlineIntOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() { types.EncodeInlineInt(types.MaxInlineInt + 1) })
	assert.Panics(t, func() { types.EncodeInlineInt(types.MinInlineInt - 1) })
}

func TestAllocationHeaderRoundTrip(t *testing.T) {
	h := types.Header{TypeCode: types.AllocClosure, Size: 10}
	word := h.Encode()
	got := types.DecodeHeader(word)
	assert.Equal(t, h, got)
}

func TestAllocationHeaderRejectsOversize(t *testing.T) {
	h := types.Header{TypeCode: types.AllocArray, Size: types.MaxAllocationSize + 1}
	assert.Panics(t, func() { h.Encode() })
}

package graphml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"":        KindString,
		"string":  KindString,
		"boolean": KindBoolean,
		" Int ":   KindInt,
		"LONG":    KindLong,
		"float":   KindFloat,
		"double":  KindDouble,
	}
	for text, want := range cases {
		got, err := ParseKind(text)
		require.NoError(t, err, text)
		assert.Equal(t, want, got, text)
	}

	_, err := ParseKind("decimal")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestParseScalar(t *testing.T) {
	t.Run("typed values", func(t *testing.T) {
		v, err := ParseScalar(KindInt, " 42 ")
		require.NoError(t, err)
		assert.Equal(t, int32(42), v)

		v, err = ParseScalar(KindLong, "9000000000")
		require.NoError(t, err)
		assert.Equal(t, int64(9000000000), v)

		v, err = ParseScalar(KindFloat, "1.5")
		require.NoError(t, err)
		assert.Equal(t, float32(1.5), v)

		v, err = ParseScalar(KindDouble, "-2.25")
		require.NoError(t, err)
		assert.Equal(t, -2.25, v)

		v, err = ParseScalar(KindString, "  raw text ")
		require.NoError(t, err)
		assert.Equal(t, "  raw text ", v)
	})

	t.Run("booleans are lenient", func(t *testing.T) {
		v, _ := ParseScalar(KindBoolean, "TRUE")
		assert.Equal(t, true, v)
		v, _ = ParseScalar(KindBoolean, "no")
		assert.Equal(t, false, v)
	})

	t.Run("blank text is the zero value", func(t *testing.T) {
		for kind, want := range map[Kind]any{
			KindBoolean: false,
			KindInt:     int32(0),
			KindLong:    int64(0),
			KindFloat:   float32(0),
			KindDouble:  float64(0),
			KindString:  "",
		} {
			v, err := ParseScalar(kind, "")
			require.NoError(t, err)
			assert.Equal(t, want, v, kind.String())
		}
	})

	t.Run("malformed numbers", func(t *testing.T) {
		_, err := ParseScalar(KindInt, "abc")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))

		var mv *MalformedValueError
		require.True(t, errors.As(err, &mv))
		assert.Equal(t, KindInt, mv.Kind)
		assert.Equal(t, "abc", mv.Text)

		_, err = ParseScalar(KindInt, "3000000000")
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue), "int32 overflow")
	})
}

func TestParseList(t *testing.T) {
	t.Run("integer list", func(t *testing.T) {
		v, err := ParseList(KindInt, "[1,2,3]")
		require.NoError(t, err)
		assert.Equal(t, []any{int32(1), int32(2), int32(3)}, v)
	})

	t.Run("string list", func(t *testing.T) {
		v, err := ParseList(KindString, `["a", "b c"]`)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b c"}, v)
	})

	t.Run("doubles accept integers", func(t *testing.T) {
		v, err := ParseList(KindDouble, "[1, 2.5]")
		require.NoError(t, err)
		assert.Equal(t, []any{1.0, 2.5}, v)
	})

	t.Run("empty list", func(t *testing.T) {
		v, err := ParseList(KindLong, "[]")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("malformed literal", func(t *testing.T) {
		_, err := ParseList(KindInt, "[1,2,")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))
	})

	t.Run("mistyped element", func(t *testing.T) {
		_, err := ParseList(KindInt, `[1, "two"]`)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))

		_, err = ParseList(KindInt, `[1.5]`)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))

		_, err = ParseList(KindBoolean, `[true, null]`)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))
	})

	t.Run("not an array", func(t *testing.T) {
		_, err := ParseList(KindInt, `{"a": 1}`)
		assert.True(t, errors.Is(err, ErrMalformedAttributeValue))
	})
}

func TestValueRoundTrip(t *testing.T) {
	scalars := []struct {
		kind  Kind
		value any
	}{
		{KindBoolean, true},
		{KindBoolean, false},
		{KindInt, int32(-17)},
		{KindLong, int64(1) << 40},
		{KindFloat, float32(3.25)},
		{KindDouble, 0.1},
		{KindString, "hello, world"},
	}
	for _, c := range scalars {
		text := FormatScalar(c.kind, c.value)
		got, err := ParseScalar(c.kind, text)
		require.NoError(t, err, text)
		assert.Equal(t, c.value, got, "%s %q", c.kind, text)
	}

	lists := []struct {
		kind   Kind
		values []any
	}{
		{KindBoolean, []any{true, false}},
		{KindInt, []any{int32(1), int32(-2)}},
		{KindLong, []any{int64(7), int64(1) << 50}},
		{KindFloat, []any{float32(0.5), float32(-8)}},
		{KindDouble, []any{1.25, 1e10}},
		{KindString, []any{"a", `quote " inside`}},
	}
	for _, c := range lists {
		text := FormatList(c.values)
		got, err := ParseList(c.kind, text)
		require.NoError(t, err, text)
		assert.Equal(t, c.values, got, "%s %s", c.kind, text)
	}
}

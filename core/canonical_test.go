package core

import (
	"encoding/json"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestCanonicalizeSortsKeysRecursively(t *testing.T) {
	v := decode(t, `{"b":1,"a":{"d":[3,1,2],"c":"x"},"e":null}`)
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"c":"x","d":[3,1,2]},"b":1,"e":null}`, string(out))
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := decode(t, `{"patient":"P1","vitals":{"bp":"120/80","pulse":72},"tags":["a","b"]}`)
	b := decode(t, `{"tags":["a","b"],"vitals":{"pulse":72,"bp":"120/80"},"patient":"P1"}`)

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashArrayOrderMatters(t *testing.T) {
	ha, err := Hash(decode(t, `{"x":[1,2]}`))
	require.NoError(t, err)
	hb, err := Hash(decode(t, `{"x":[2,1]}`))
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHashStructMatchesEquivalentMap(t *testing.T) {
	type vitals struct {
		Pulse int    `json:"pulse"`
		BP    string `json:"bp"`
	}
	hs, err := Hash(vitals{Pulse: 72, BP: "120/80"})
	require.NoError(t, err)
	hm, err := Hash(map[string]any{"bp": "120/80", "pulse": 72})
	require.NoError(t, err)
	assert.Equal(t, hs, hm)
}

func TestCanonicalizePrimitives(t *testing.T) {
	cases := map[string]any{
		"null":    nil,
		`"x"`:     "x",
		"3":       3,
		"true":    true,
		`"<a&b>"`: "<a&b>",
		"1.5":     1.5,
	}
	for want, in := range cases {
		out, err := Canonicalize(in)
		require.NoError(t, err)
		assert.Equal(t, want, string(out))
	}
}

func TestCanonicalizeRejectsUnencodable(t *testing.T) {
	_, err := Canonicalize(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
	_, err = Hash(func() {})
	assert.Error(t, err)
}

func TestCanonicalizationIdempotenceProperty(t *testing.T) {
	f := func(m map[string]int, tags []string) bool {
		payload := map[string]any{"m": m, "tags": tags}
		first, err := Canonicalize(payload)
		if err != nil {
			return false
		}
		var reparsed any
		if err := json.Unmarshal(first, &reparsed); err != nil {
			return false
		}
		second, err := Canonicalize(reparsed)
		if err != nil {
			return false
		}
		return string(first) == string(second)
	}
	require.NoError(t, quick.Check(f, nil))
}

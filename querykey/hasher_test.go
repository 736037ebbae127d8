package querykey

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-query-cache/pkg/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_Fixtures(t *testing.T) {
	for _, scenario := range testsupport.LoadKeyScenarios(t, "canonical_forms.json") {
		for _, tc := range scenario.Cases {
			t.Run(scenario.Name+"/"+tc.Name, func(t *testing.T) {
				var key Key
				require.NoError(t, json.Unmarshal(tc.Key, &key))

				got, err := Hash(key)
				require.NoError(t, err)
				assert.Equal(t, tc.ExpectedHash, got)
			})
		}
	}
}

func TestHash_Prefix(t *testing.T) {
	got, err := Hash(Key{"todos"})
	require.NoError(t, err)
	assert.Equal(t, `qk:[str:"todos"]`, got)
	assert.True(t, strings.HasPrefix(got, Prefix))

	empty, err := Hash(nil)
	require.NoError(t, err)
	assert.Equal(t, "qk:[]", empty)
}

func TestHash_EqualIffCanonicalFormsEqual(t *testing.T) {
	keys := []Key{
		{"todos", map[string]any{"page": 1, "done": false}},
		{"todos", NewObject().Set("done", false).Set("page", 1)},
		{"todos", map[string]any{"page": 2, "done": false}},
		{"todos"},
		{"todos", 1},
		{"todos", "1"},
	}

	for i := range keys {
		for j := range keys {
			hi, err := Hash(keys[i])
			require.NoError(t, err)
			hj, err := Hash(keys[j])
			require.NoError(t, err)
			fi, err := Serialize([]any(keys[i]))
			require.NoError(t, err)
			fj, err := Serialize([]any(keys[j]))
			require.NoError(t, err)

			assert.Equal(t, fi == fj, hi == hj, "keys %d and %d", i, j)
		}
	}

	first, _ := Hash(keys[0])
	second, _ := Hash(keys[1])
	assert.Equal(t, first, second, "native and explicit objects should hash equally")
}

func TestHash_CircularReference(t *testing.T) {
	list := NewList()
	list.Append(list)

	_, err := Hash(Key{"todos", list})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircularReference))

	assert.Panics(t, func() { MustHash(Key{list}) })
	assert.NotPanics(t, func() { MustHash(Key{"ok"}) })
}

func TestFingerprint(t *testing.T) {
	a := MustHash(Key{"todos", 1})
	b := MustHash(Key{"todos", 2})

	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func BenchmarkHash(b *testing.B) {
	key := Key{"todos", map[string]any{"page": 1, "tags": []string{"a", "b"}}, 42}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Hash(key); err != nil {
			b.Fatal(err)
		}
	}
}

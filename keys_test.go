package cache

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	stringCacheKey := &StringCacheKey{}
	assert.Equal(t, "foo", stringCacheKey.Marshal("foo"))
	key, err := stringCacheKey.Unmarshal("foo")
	assert.Nil(t, err)
	assert.Equal(t, "foo", key)
}

func TestCreateValueKeyDeterministic(t *testing.T) {
	key1, err := CreateValueKey("test", map[string]any{"test": "value"})
	require.NoError(t, err)
	key2, err := CreateValueKey("test", map[string]any{"test": "value"})
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.True(t, strings.HasPrefix(key1, "test|"))
	assert.Len(t, key1, len("test|")+16)
}

func TestCreateValueKeyIgnoresMapOrder(t *testing.T) {
	map1 := map[string]any{"b": 2, "a": 1, "c": map[string]any{"y": true, "x": nil}}
	map2 := map[string]any{"c": map[string]any{"x": nil, "y": true}, "a": 1, "b": 2}

	key1, err := CreateValueKey("p", map1)
	require.NoError(t, err)
	key2, err := CreateValueKey("p", map2)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestCreateValueKeyDistinguishesInputs(t *testing.T) {
	cases := []struct {
		name   string
		pathA  string
		valueA any
		pathB  string
		valueB any
	}{
		{"different path", "a", 1, "b", 1},
		{"different value", "a", 1, "a", 2},
		{"array order", "a", []any{1, 2, 3}, "a", []any{3, 2, 1}},
		{"nil vs empty map", "a", nil, "a", map[string]any{}},
		{"string vs number", "a", "1", "a", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			keyA, err := CreateValueKey(tc.pathA, tc.valueA)
			require.NoError(t, err)
			keyB, err := CreateValueKey(tc.pathB, tc.valueB)
			require.NoError(t, err)
			assert.NotEqual(t, keyA, keyB)
		})
	}
}

func TestCreateValueKeyNormalizesTypedMaps(t *testing.T) {
	key1, err := CreateValueKey("p", map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	key2, err := CreateValueKey("p", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	value := map[string]any{"a": 1}
	key3, err := CreateValueKey("p", &value)
	require.NoError(t, err)
	key4, err := CreateValueKey("p", value)
	require.NoError(t, err)
	assert.Equal(t, key3, key4)
}

func TestCreateValueKeyUnsupportedValue(t *testing.T) {
	_, err := CreateValueKey("p", make(chan int))
	assert.True(t, errors.Is(err, ErrKeyEncoding))
}

func TestCreateFormStateKey(t *testing.T) {
	state := FormState{
		Values:  map[string]any{"name": "Ada", "lines": []any{map[string]any{"qty": 1}}},
		Errors:  map[string]any{},
		Touched: map[string]bool{"name": true, "lines": false},
	}
	same := FormState{
		Values:  map[string]any{"lines": []any{map[string]any{"qty": 1}}, "name": "Ada"},
		Errors:  map[string]any{},
		Touched: map[string]bool{"lines": false, "name": true},
	}

	key1, err := CreateFormStateKey(state)
	require.NoError(t, err)
	key2, err := CreateFormStateKey(same)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
	assert.True(t, strings.HasPrefix(key1, "form|"))

	same.Submitting = true
	key3, err := CreateFormStateKey(same)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)
}

func TestPathOfKey(t *testing.T) {
	key, err := CreateValueKey("lines[0].price|net", 42)
	require.NoError(t, err)

	path, ok := PathOfKey(key)
	assert.True(t, ok)
	assert.Equal(t, "lines[0].price|net", path)

	for _, invalid := range []string{"", "short", "name|not-a-hex-digest!", "name:0123456789abcdef"} {
		_, ok := PathOfKey(invalid)
		assert.False(t, ok, invalid)
	}
}

func TestPathCovers(t *testing.T) {
	assert.True(t, pathCovers("items", "items"))
	assert.True(t, pathCovers("items", "items.0.name"))
	assert.True(t, pathCovers("items", "items[2]"))
	assert.False(t, pathCovers("items", "itemsTotal"))
	assert.False(t, pathCovers("items.0", "items"))
	assert.False(t, pathCovers("", "items"))
	assert.True(t, pathCovers("", ""))
}

type lineTotals struct {
	Vendor string         `msgpack:"vendor"`
	Counts map[string]int `msgpack:"counts"`
	Note   string         `msgpack:"-"`
	hidden int
}

func TestCreateValueKeyStructWithTypedMap(t *testing.T) {
	input := lineTotals{
		Vendor: "acme",
		Counts: map[string]int{
			"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7, "h": 8, "i": 9, "j": 10,
		},
	}

	keys := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key, err := CreateValueKey("totals", input)
		require.NoError(t, err)
		keys[key] = struct{}{}
	}
	assert.Len(t, keys, 1)

	formKeys := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key, err := CreateFormStateKey(FormState{Values: map[string]any{"totals": input}})
		require.NoError(t, err)
		formKeys[key] = struct{}{}
	}
	assert.Len(t, formKeys, 1)
}

func TestCreateValueKeyStructFields(t *testing.T) {
	base, err := CreateValueKey("p", lineTotals{Vendor: "acme", Note: "one", hidden: 1})
	require.NoError(t, err)

	// skipped and unexported fields do not take part
	same, err := CreateValueKey("p", lineTotals{Vendor: "acme", Note: "two", hidden: 2})
	require.NoError(t, err)
	assert.Equal(t, base, same)

	other, err := CreateValueKey("p", lineTotals{Vendor: "globex"})
	require.NoError(t, err)
	assert.NotEqual(t, base, other)

	// struct values are hashed by their msgpack field names
	asMap, err := CreateValueKey("p", map[string]any{"vendor": "acme", "counts": nil})
	require.NoError(t, err)
	assert.Equal(t, base, asMap)
}

func TestCreateValueKeyTimeValues(t *testing.T) {
	first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	key1, err := CreateValueKey("due", first)
	require.NoError(t, err)
	key2, err := CreateValueKey("due", first.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)
}

func TestCreateValueKeyMapKeyTypes(t *testing.T) {
	intKeyed, err := CreateValueKey("p", map[int]any{1: "x"})
	require.NoError(t, err)
	stringKeyed, err := CreateValueKey("p", map[string]any{"1": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, intKeyed, stringKeyed)

	anyKeyed, err := CreateValueKey("p", map[any]any{"1": "x"})
	require.NoError(t, err)
	assert.Equal(t, stringKeyed, anyKeyed)
}

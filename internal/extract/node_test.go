package extract

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeLookup(t *testing.T) {
	t.Parallel()

	n := Node{
		"a":    map[string]any{"b": map[string]any{"c": "leaf"}},
		"null": nil,
		"list": []any{"x"},
		"str":  "scalar",
	}

	tests := []struct {
		name string
		path string
		want any
		ok   bool
	}{
		{name: "nested", path: "a.b.c", want: "leaf", ok: true},
		{name: "intermediate object", path: "a.b", want: map[string]any{"c": "leaf"}, ok: true},
		{name: "missing leaf", path: "a.b.d"},
		{name: "missing root", path: "nope"},
		{name: "null", path: "null"},
		{name: "through null", path: "null.x"},
		{name: "through scalar", path: "str.x"},
		{name: "through list", path: "list.0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := n.Lookup(tc.path)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.ok, n.Has(tc.path))
		})
	}
}

func TestReaderNumbers(t *testing.T) {
	t.Parallel()

	n := Node{
		"int":      float64(12),
		"frac":     12.5,
		"string":   "7",
		"bool":     true,
		"garbage":  "seven",
		"negative": float64(-3),
		"maxText":  "9223372036854775807",
		"maxFloat": float64(math.MaxInt64),
		"minText":  "-9223372036854775808",
	}
	r := &reader{section: "test"}

	require.Equal(t, int64(12), *r.int(n, "int"))
	require.Equal(t, int64(7), *r.int(n, "string"))
	require.Equal(t, int64(-3), *r.int(n, "negative"))
	require.Equal(t, 12.5, *r.float(n, "frac"))
	require.Nil(t, r.int(n, "frac"))
	require.Nil(t, r.int(n, "bool"))
	require.Nil(t, r.float(n, "garbage"))
	require.Nil(t, r.int(n, "absent"))

	// MaxInt64 is not exactly representable and rounds past the int64 range.
	require.Nil(t, r.int(n, "maxText"))
	require.Nil(t, r.int(n, "maxFloat"))
	require.Equal(t, int64(math.MinInt64), *r.int(n, "minText"))

	require.Len(t, r.issues, 5)
	for _, issue := range r.issues {
		require.Equal(t, "test", issue.Section)
	}
}

func TestReaderDates(t *testing.T) {
	t.Parallel()

	n := Node{
		"good":     "2020-02-29",
		"bad":      "2021-02-30",
		"datetime": "2020-01-01T00:00:00Z",
	}
	r := &reader{section: "test"}

	got := r.date(n, "good")
	require.NotNil(t, got)
	require.Equal(t, "2020-02-29", got.String())
	require.Nil(t, r.date(n, "bad"))
	require.Nil(t, r.date(n, "datetime"))
	require.Len(t, r.issues, 2)
}

func TestReaderStrings(t *testing.T) {
	t.Parallel()

	n := Node{
		"titles": []any{"CEO", 3.0, "Founder"},
		"scalar": "CTO",
	}
	r := &reader{section: "test"}

	require.Equal(t, []string{"CEO", "Founder"}, r.strs(n, "titles"))
	require.Nil(t, r.strs(n, "scalar"))
	require.Nil(t, r.strs(n, "absent"))

	require.Len(t, r.issues, 2)
	require.Equal(t, "titles[1]", r.issues[0].Path)
	require.Equal(t, "scalar", r.issues[1].Path)
}

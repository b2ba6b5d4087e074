package selectexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "@rules_rust//rust/platform"

var desktop = []string{
	"x86_64-apple-darwin",
	"x86_64-pc-windows-gnu",
	"x86_64-unknown-linux-gnu",
}

func TestSynthesize_Always(t *testing.T) {
	t.Parallel()

	s, err := New(prefix, desktop, nil)
	require.NoError(t, err)

	e, err := s.Synthesize(desktop)
	require.NoError(t, err)
	assert.True(t, e.Always)
	assert.Empty(t, e.Labels)
}

func TestSynthesize_SingleTriple(t *testing.T) {
	t.Parallel()

	s, err := New(prefix, desktop, nil)
	require.NoError(t, err)

	e, err := s.Synthesize([]string{"x86_64-pc-windows-gnu"})
	require.NoError(t, err)
	assert.False(t, e.Always)
	assert.Equal(t, []string{prefix + ":x86_64-pc-windows-gnu"}, e.Labels)
}

func TestSynthesize_GroupPreferredOverUnion(t *testing.T) {
	t.Parallel()

	s, err := New(prefix, desktop, []Condition{
		{Label: "//platforms:posix", Triples: []string{"x86_64-apple-darwin", "x86_64-unknown-linux-gnu"}},
	})
	require.NoError(t, err)

	// The group matches the subset exactly; a single label beats two
	// per-triple labels.
	e, err := s.Synthesize([]string{"x86_64-unknown-linux-gnu", "x86_64-apple-darwin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"//platforms:posix"}, e.Labels)
}

func TestSynthesize_UnionCover(t *testing.T) {
	t.Parallel()

	s, err := New(prefix, desktop, nil)
	require.NoError(t, err)

	e, err := s.Synthesize([]string{"x86_64-apple-darwin", "x86_64-pc-windows-gnu"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		prefix + ":x86_64-apple-darwin",
		prefix + ":x86_64-pc-windows-gnu",
	}, e.Labels)
}

func TestSynthesize_EmptySubset(t *testing.T) {
	t.Parallel()

	s, err := New(prefix, desktop, nil)
	require.NoError(t, err)

	_, err = s.Synthesize(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty triple subset")
}

func TestSynthesize_GroupClippedToRequested(t *testing.T) {
	t.Parallel()

	// The group names a triple outside the requested set; the clipped group
	// still selects its in-set remainder.
	s, err := New(prefix, desktop, []Condition{
		{Label: "//platforms:linuxish", Triples: []string{"x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu"}},
	})
	require.NoError(t, err)

	e, err := s.Synthesize([]string{"x86_64-unknown-linux-gnu"})
	require.NoError(t, err)
	// Label order decides ties between exact matches; the group label sorts
	// before the per-triple label.
	assert.Equal(t, []string{"//platforms:linuxish"}, e.Labels)
}

func TestSynthesize_DuplicateLabel(t *testing.T) {
	t.Parallel()

	_, err := New(prefix, desktop, []Condition{
		{Label: prefix + ":x86_64-apple-darwin", Triples: []string{"x86_64-apple-darwin"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate platform condition label")
}

func TestSynthesize_Unrepresentable(t *testing.T) {
	t.Parallel()

	// With a restricted catalog there is no per-triple fallback, so a subset
	// not covered by any condition combination is a hard error.
	s, err := NewRestricted(desktop, []Condition{
		{Label: "//platforms:apple", Triples: []string{"x86_64-apple-darwin"}},
	})
	require.NoError(t, err)

	_, err = s.Synthesize([]string{"x86_64-apple-darwin", "x86_64-pc-windows-gnu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no combination of named platform conditions")
	assert.Contains(t, err.Error(), "x86_64-pc-windows-gnu")
}

func TestSynthesize_RoundTrip(t *testing.T) {
	t.Parallel()

	// Every synthesized expression must evaluate back to exactly the subset
	// it was built from.
	s, err := New(prefix, desktop, []Condition{
		{Label: "//platforms:posix", Triples: []string{"x86_64-apple-darwin", "x86_64-unknown-linux-gnu"}},
	})
	require.NoError(t, err)

	subsets := [][]string{
		{"x86_64-apple-darwin"},
		{"x86_64-pc-windows-gnu"},
		{"x86_64-apple-darwin", "x86_64-unknown-linux-gnu"},
		{"x86_64-apple-darwin", "x86_64-pc-windows-gnu"},
		desktop,
	}
	for _, subset := range subsets {
		e, err := s.Synthesize(subset)
		require.NoError(t, err)

		want := make(map[string]bool, len(subset))
		for _, tr := range subset {
			want[tr] = true
		}
		for _, tr := range desktop {
			assert.Equal(t, want[tr], s.Eval(e, tr), "subset %v, triple %s", subset, tr)
		}
	}
}

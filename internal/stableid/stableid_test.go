package stableid

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexRe = regexp.MustCompile(`^[0-9a-f]+$`)

func TestIDDeterministic(t *testing.T) {
	t.Parallel()
	a := ID("src/routes/+page.svelte", "server_add", DefaultLength)
	for range 10 {
		assert.Equal(t, a, ID("src/routes/+page.svelte", "server_add", DefaultLength))
	}
	assert.Len(t, a, DefaultLength)
	assert.Regexp(t, hexRe, a)
}

func TestIDChangesWithInputs(t *testing.T) {
	t.Parallel()
	base := ID("src/routes/+page.svelte", "server_add", DefaultLength)
	assert.NotEqual(t, base, ID("src/routes/+page.svelte", "server_sub", DefaultLength))
	assert.NotEqual(t, base, ID("src/routes/about/+page.svelte", "server_add", DefaultLength))
}

func TestIDNormalizesSeparators(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		ID("src/routes/+page.svelte", "server_add", DefaultLength),
		ID(filepath.Join("src", "routes", "+page.svelte"), "server_add", DefaultLength))
}

func TestIDLengthBounds(t *testing.T) {
	t.Parallel()
	assert.Len(t, ID("a", "b", 0), DefaultLength)
	assert.Len(t, ID("a", "b", 1000), MaxLength)
	assert.Len(t, ID("a", "b", MinLength), MinLength)
}

func TestLocate(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	g := Generator{Root: root, OutputDir: "src/routes/api", RouteBase: "/api/", Length: DefaultLength}

	loc, err := g.Locate("server_add", filepath.Join(root, "src", "routes", "+page.svelte"))
	require.NoError(t, err)

	id := ID("src/routes/+page.svelte", "server_add", DefaultLength)
	assert.Equal(t, id, loc.ID)
	assert.Equal(t, "server_add_"+id, loc.Segment)
	assert.Equal(t, "src/routes/+page.svelte", loc.Document)
	assert.Equal(t, filepath.Join(root, "src", "routes", "api", loc.Segment), loc.Dir)
	assert.Equal(t, filepath.Join(loc.Dir, "+server.js"), loc.File)
	assert.Equal(t, "/api/"+loc.Segment, loc.Route)

	// A relative document path resolves against the root identically.
	rel, err := g.Locate("server_add", "src/routes/+page.svelte")
	require.NoError(t, err)
	assert.Equal(t, loc, rel)
}

func TestCollisionProbabilityBound(t *testing.T) {
	t.Parallel()
	assert.Zero(t, CollisionProbability(1, DefaultLength))
	// Ten thousand remote functions in one project stay well below one in a
	// million at the default length.
	assert.Less(t, CollisionProbability(10_000, DefaultLength), 1e-6)
	// The minimum length is still below 1% for a thousand functions.
	assert.Less(t, CollisionProbability(1_000, MinLength), 0.01)
	assert.Greater(t, CollisionProbability(100_000, MinLength), 0.5)
}

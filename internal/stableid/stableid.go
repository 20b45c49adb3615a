// Package stableid derives deterministic identifiers, endpoint paths and
// routes for tagged functions.
//
// An id is the hex SHA-256 of "<relative document path>:<function name>",
// truncated to a fixed length. The same function at the same location always
// maps to the same route across builds, which keeps client code compiled by
// earlier builds working.
package stableid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultLength is the number of hex characters kept from the hash
	// (48 bits).
	DefaultLength = 12
	// MinLength and MaxLength bound the configurable length.
	MinLength = 8
	MaxLength = sha256.Size * 2

	delimiter = ":"
)

// Location is where a tagged function is served from.
type Location struct {
	ID string
	// Segment is the route segment and directory name: <name>_<id>.
	Segment string
	// Document is the declaring document relative to the project root.
	Document string
	Dir      string
	File     string
	Route    string
}

// Generator derives locations for one project.
type Generator struct {
	Root      string
	OutputDir string // absolute, or relative to Root
	RouteBase string
	Length    int
	// Handler is the endpoint module's file name.
	Handler string
}

// ID returns the stable id of name declared in the document at relPath.
// relPath is normalized to forward slashes before hashing.
func ID(relPath, name string, length int) string {
	if length <= 0 {
		length = DefaultLength
	}
	if length > MaxLength {
		length = MaxLength
	}
	sum := sha256.Sum256([]byte(filepath.ToSlash(relPath) + delimiter + name))
	return hex.EncodeToString(sum[:])[:length]
}

// Relative returns docPath relative to root with forward slashes.
func Relative(root, docPath string) (string, error) {
	if !filepath.IsAbs(docPath) {
		return filepath.ToSlash(filepath.Clean(docPath)), nil
	}
	rel, err := filepath.Rel(root, docPath)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", docPath, err)
	}
	return filepath.ToSlash(rel), nil
}

// Locate returns the location of function name declared in docPath. docPath
// is either absolute or relative to the generator's root.
func (g Generator) Locate(name, docPath string) (Location, error) {
	rel, err := Relative(g.Root, docPath)
	if err != nil {
		return Location{}, err
	}
	id := ID(rel, name, g.Length)
	segment := name + "_" + id

	out := g.OutputDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(g.Root, out)
	}
	handler := g.Handler
	if handler == "" {
		handler = "+server.js"
	}
	base := "/" + strings.Trim(g.RouteBase, "/")

	return Location{
		ID:       id,
		Segment:  segment,
		Document: rel,
		Dir:      filepath.Join(out, segment),
		File:     filepath.Join(out, segment, handler),
		Route:    path.Join(base, segment),
	}, nil
}

// CollisionProbability returns the birthday-bound probability that at least
// two of n functions share an id of the given hex length.
func CollisionProbability(n, length int) float64 {
	if n < 2 {
		return 0
	}
	space := math.Pow(16, float64(length))
	pairs := float64(n) * float64(n-1) / 2
	return -math.Expm1(-pairs / space)
}

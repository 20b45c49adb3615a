// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phobologic/remotefn/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Manifest describes the endpoints of one project.
type Manifest struct {
	Project   string
	Root      string
	Endpoints []model.Endpoint
}

// Encode converts a Manifest into TOON format. Endpoint files are listed
// relative to the project root.
func Encode(m Manifest) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(m.Project)))
	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(m.Root)))

	var rows [][]string
	for i := range m.Endpoints {
		ep := &m.Endpoints[i]
		file := ep.FilePath
		if rel, err := filepath.Rel(m.Root, file); err == nil {
			file = filepath.ToSlash(rel)
		}
		rows = append(rows, []string{
			ep.Function,
			ep.Document,
			ep.Route,
			file,
		})
	}
	parts = append(parts, formatTabular("routes", []string{"function", "document", "route", "file"}, rows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

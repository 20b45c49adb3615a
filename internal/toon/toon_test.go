package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/remotefn/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "src/routes/+page.svelte", "src/routes/+page.svelte"},
		{"route", "/api/server_add_0123456789ab", "/api/server_add_0123456789ab"},
		{"hex id", "0123456789", "0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	m := Manifest{
		Project: "shop",
		Root:    "/work/shop",
		Endpoints: []model.Endpoint{
			{
				Function: "server_add",
				Document: "src/routes/+page.svelte",
				Route:    "/api/server_add_0123456789ab",
				FilePath: "/work/shop/src/routes/api/server_add_0123456789ab/+server.js",
			},
			{
				Function: "server_list",
				Document: "src/routes/items/+page.svelte",
				Route:    "/api/server_list_ba9876543210",
				FilePath: "/work/shop/src/routes/api/server_list_ba9876543210/+server.ts",
			},
		},
	}

	got := Encode(m)

	// Verify structure
	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), got)
	}
	if lines[0] != "project: shop" {
		t.Errorf("line 0: got %q", lines[0])
	}
	if lines[1] != "root: /work/shop" {
		t.Errorf("line 1: got %q", lines[1])
	}
	if lines[2] != "routes[2]{function,document,route,file}:" {
		t.Errorf("line 2: got %q", lines[2])
	}
	if lines[3] != "  server_add,src/routes/+page.svelte,/api/server_add_0123456789ab,src/routes/api/server_add_0123456789ab/+server.js" {
		t.Errorf("line 3: got %q", lines[3])
	}
	if lines[4] != "  server_list,src/routes/items/+page.svelte,/api/server_list_ba9876543210,src/routes/api/server_list_ba9876543210/+server.ts" {
		t.Errorf("line 4: got %q", lines[4])
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(Manifest{Project: "empty", Root: "empty"})
	if !strings.Contains(got, "routes[0]{function,document,route,file}:") {
		t.Errorf("expected empty routes section, got:\n%s", got)
	}
}

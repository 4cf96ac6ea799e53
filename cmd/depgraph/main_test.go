package main

import (
	"bytes"
	"testing"

	"golang.org/x/tools/go/packages"
)

func TestEdges(t *testing.T) {
	defs := &packages.Package{PkgPath: "rthread/defs"}
	kern := &packages.Package{
		PkgPath: "rthread/kern",
		Imports: map[string]*packages.Package{
			"rthread/defs": defs,
			"runtime":      {PkgPath: "runtime"},
		},
	}
	es := edges([]*packages.Package{kern, defs}, false)
	if len(es) != 1 || es[0] != [2]string{"rthread/kern", "rthread/defs"} {
		t.Fatalf("want one module edge, got %v", es)
	}
	es = edges([]*packages.Package{kern, defs}, true)
	if len(es) != 2 || es[1][1] != "runtime" {
		t.Fatalf("want both edges in order, got %v", es)
	}

	var buf bytes.Buffer
	dot(&buf, es[:1])
	want := "digraph deps {\n    \"rthread/kern\" -> \"rthread/defs\";\n}\n"
	if buf.String() != want {
		t.Fatalf("want %q, got %q", want, buf.String())
	}
}

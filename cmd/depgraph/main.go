package main

import "bufio"
import "flag"
import "io"
import "log"
import "os"
import "sort"
import "strings"

import "golang.org/x/tools/go/packages"

// Program depgraph prints a Graphviz DOT description of the import graph
// of the runtime's packages. Only edges inside the module are shown unless
// -all is given.
func main() {
	all := flag.Bool("all", false, "include imports from outside the module")
	flag.Parse()
	pats := flag.Args()
	if len(pats) == 0 {
		pats = []string{"rthread/..."}
	}
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedModule}
	pkgs, err := packages.Load(cfg, pats...)
	if err != nil {
		log.Fatal(err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()
	dot(writer, edges(pkgs, *all))
}

// edges returns the sorted import edges of pkgs. Without all, an edge is
// kept only when both ends share the importer's module path prefix.
func edges(pkgs []*packages.Package, all bool) [][2]string {
	var es [][2]string
	for _, p := range pkgs {
		mod := strings.SplitN(p.PkgPath, "/", 2)[0]
		for path := range p.Imports {
			if !all && path != mod && !strings.HasPrefix(path, mod+"/") {
				continue
			}
			es = append(es, [2]string{p.PkgPath, path})
		}
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i][0] != es[j][0] {
			return es[i][0] < es[j][0]
		}
		return es[i][1] < es[j][1]
	})
	return es
}

func dot(w io.Writer, es [][2]string) {
	io.WriteString(w, "digraph deps {\n")
	for _, e := range es {
		io.WriteString(w, "    \""+e[0]+"\" -> \""+e[1]+"\";\n")
	}
	io.WriteString(w, "}\n")
}

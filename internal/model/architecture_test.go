package model

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// The entity store and the domain types stay free of storage, transport and
// configuration code.
func TestModelLayerImports(t *testing.T) {
	forbidden := []string{
		"database/sql",
		"euroaip/internal/infra",
		"euroaip/internal/changefeed",
		"euroaip/internal/config",
		"euroaip/internal/core",
	}
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	pkgs, err := packages.Load(cfg, "euroaip/internal/model", "euroaip/pkg/domain", "euroaip/pkg/geo")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	for _, pkg := range pkgs {
		visited := make(map[string]bool)
		var walk func(p *packages.Package)
		walk = func(p *packages.Package) {
			for path, dep := range p.Imports {
				if visited[path] {
					continue
				}
				visited[path] = true
				for _, f := range forbidden {
					if path == f || strings.HasPrefix(path, f+"/") {
						t.Errorf("%s depends on %s", pkg.PkgPath, path)
					}
				}
				if strings.HasPrefix(path, "euroaip/") {
					walk(dep)
				}
			}
		}
		walk(pkg)
	}
}

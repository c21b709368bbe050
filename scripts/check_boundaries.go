// Command check_boundaries enforces the lifecycle service layering. It checks
// which layer may import what, which packages may wrap each infrastructure
// library, and which packages may write document status or audit rows.
package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	modulePath  = "vihadmin"
	servicePath = modulePath + "/contexts/document-workflow/lifecycle-service"
)

var scanRoots = []string{"contexts", "internal", "cmd"}

type violation struct {
	File   string
	Line   int
	Detail string
	Rule   string
}

// layerRule lists what a service layer may import besides the standard library.
type layerRule struct {
	layer   string
	allowed []string
}

var layerRules = []layerRule{
	{layer: "domain", allowed: []string{servicePath + "/domain"}},
	{layer: "ports", allowed: []string{servicePath + "/domain"}},
	{layer: "application", allowed: []string{
		servicePath + "/application",
		servicePath + "/domain",
		servicePath + "/ports",
		modulePath + "/contracts",
		// spans only; exporters are wired in internal/platform/observability
		"go.opentelemetry.io/otel",
	}},
}

// libraryOwners pins each infrastructure library to the packages that wrap it.
var libraryOwners = map[string][]string{
	"gorm.io":                   {servicePath + "/adapters/postgres", modulePath + "/internal/platform/db"},
	"github.com/jackc/pgx":      {servicePath + "/adapters/postgres"},
	"github.com/pressly/goose":  {servicePath + "/adapters/postgres"},
	"gopkg.in/yaml.v3":          {servicePath + "/adapters/catalog"},
	"github.com/redis/go-redis": {servicePath + "/adapters/redis", modulePath + "/internal/app/bootstrap"},
	"github.com/ThreeDotsLabs":  {modulePath + "/internal/platform/messaging"},
	"github.com/IBM/sarama":     {modulePath + "/internal/platform/messaging"},
}

// writeMethods maps each write-side persistence method to the one package
// allowed to call it. A package that declares the method may call its own.
var writeMethods = map[string]string{
	"SwapDocumentStatus": servicePath + "/application/commands",
	"AppendTransition":   servicePath + "/application/audit",
}

type sourceFile struct {
	path    string
	pkgPath string
	file    *ast.File
}

func main() {
	violations := collectViolations(scanRoots...)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d %s (%s)\n", v.File, v.Line, v.Detail, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(roots ...string) []violation {
	var (
		files      []sourceFile
		violations []violation
	)
	fset := token.NewFileSet()
	declared := make(map[string]map[string]bool)

	for _, root := range roots {
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(p, ".go") || strings.HasSuffix(p, "_test.go") {
				return nil
			}
			normalized := filepath.ToSlash(p)
			file, err := parser.ParseFile(fset, p, nil, parser.SkipObjectResolution)
			if err != nil {
				violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
				return nil
			}

			pkgPath := modulePath + "/" + path.Dir(normalized)
			files = append(files, sourceFile{path: normalized, pkgPath: pkgPath, file: file})
			for _, name := range declaredMethods(file) {
				if declared[pkgPath] == nil {
					declared[pkgPath] = make(map[string]bool)
				}
				declared[pkgPath][name] = true
			}
			return nil
		})
	}

	for _, f := range files {
		violations = append(violations, checkImports(fset, f)...)
		violations = append(violations, checkWriteCalls(fset, f, declared[f.pkgPath])...)
	}
	return violations
}

func checkImports(fset *token.FileSet, f sourceFile) []violation {
	var violations []violation
	layer, adapter := serviceLayer(f.pkgPath)

	for _, imp := range f.file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		report := func(rule string) {
			violations = append(violations, violation{
				File:   f.path,
				Line:   fset.Position(imp.Pos()).Line,
				Detail: "imports " + strconv.Quote(importPath),
				Rule:   rule,
			})
		}

		for _, rule := range layerRules {
			if layer == rule.layer && !isStdlib(importPath) && !withinAny(importPath, rule.allowed) {
				report(rule.layer + " import is outside its allowlist")
			}
		}
		if adapter != "" && within(importPath, servicePath+"/adapters") &&
			!within(importPath, servicePath+"/adapters/"+adapter) {
			report("adapters must not import each other")
		}
		for library, owners := range libraryOwners {
			if within(importPath, library) && !withinAny(f.pkgPath, owners) {
				report(library + " is only wrapped by " + strings.Join(owners, ", "))
			}
		}
	}
	return violations
}

func checkWriteCalls(fset *token.FileSet, f sourceFile, implemented map[string]bool) []violation {
	var violations []violation
	ast.Inspect(f.file, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		selector, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		method := selector.Sel.Name
		owner, guarded := writeMethods[method]
		if !guarded || f.pkgPath == owner || implemented[method] {
			return true
		}
		violations = append(violations, violation{
			File:   f.path,
			Line:   fset.Position(call.Pos()).Line,
			Detail: "calls " + method,
			Rule:   "only " + strings.TrimPrefix(owner, modulePath+"/") + " may call " + method,
		})
		return true
	})
	return violations
}

func declaredMethods(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv != nil {
			names = append(names, fn.Name.Name)
		}
	}
	return names
}

// serviceLayer splits a lifecycle service package path into its layer and,
// for adapters, the adapter name.
func serviceLayer(pkgPath string) (layer string, adapter string) {
	if !strings.HasPrefix(pkgPath, servicePath+"/") {
		return "", ""
	}
	parts := strings.Split(strings.TrimPrefix(pkgPath, servicePath+"/"), "/")
	if parts[0] == "adapters" && len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func within(importPath string, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}

func withinAny(importPath string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if within(importPath, prefix) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if strings.HasPrefix(importPath, modulePath+"/") {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}

package signer

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// The signing core stays a pure function of its inputs: no settings, logging,
// metrics, storage or third-party code may leak into it.
func TestArchitecture_CorePackagesImportOnlyStdlibAndRadioParams(t *testing.T) {
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to resolve current test file path")
	}
	signerDir := filepath.Dir(currentFile)
	coreDirs := []string{signerDir, filepath.Join(filepath.Dir(signerDir), "radioparam")}
	allowedModuleImports := map[string]struct{}{
		"smcu/go-signer/internal/radioparam": {},
	}

	fset := token.NewFileSet()
	var violations []string
	for _, dir := range coreDirs {
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			parsed, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
			if err != nil {
				return fmt.Errorf("parse file %s: %w", path, err)
			}
			for _, imp := range parsed.Imports {
				importPath := strings.Trim(imp.Path.Value, `"`)
				if isStdlib(importPath) {
					continue
				}
				if _, allowed := allowedModuleImports[importPath]; allowed {
					continue
				}
				pos := fset.Position(imp.Path.Pos())
				violations = append(violations, fmt.Sprintf("%s:%d imports %q", filepath.Base(path), pos.Line, importPath))
			}
			return nil
		})
		if walkErr != nil {
			t.Fatalf("walk %s: %v", dir, walkErr)
		}
	}
	if len(violations) > 0 {
		t.Fatalf("core boundary violations detected:\n- %s", strings.Join(violations, "\n- "))
	}
}

func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".") && first != "smcu"
}

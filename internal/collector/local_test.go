package collector_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/repomap/internal/collector"
	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/types"
)

// writeTestFile creates a file with the given relative path under root.
func writeTestFile(t *testing.T, rootDirectory string, relativePath string, content string) {
	t.Helper()
	fullPath := filepath.Join(rootDirectory, filepath.FromSlash(relativePath))
	if mkdirError := os.MkdirAll(filepath.Dir(fullPath), 0o755); mkdirError != nil {
		t.Fatalf("mkdir for %s: %v", relativePath, mkdirError)
	}
	if writeError := os.WriteFile(fullPath, []byte(content), 0o644); writeError != nil {
		t.Fatalf("write %s: %v", relativePath, writeError)
	}
}

func collectedPaths(entries []types.PathEntry) map[string]types.PathEntry {
	byPath := make(map[string]types.PathEntry, len(entries))
	for _, entry := range entries {
		byPath[entry.Path()] = entry
	}
	return byPath
}

func TestLocalCollectReportsFilesAndDirectories(t *testing.T) {
	rootDirectory := t.TempDir()
	writeTestFile(t, rootDirectory, "src/index.js", "console.log(1)\n")
	writeTestFile(t, rootDirectory, "README.md", "# readme\n")
	if mkdirError := os.MkdirAll(filepath.Join(rootDirectory, "empty"), 0o755); mkdirError != nil {
		t.Fatalf("mkdir empty: %v", mkdirError)
	}

	local := collector.NewLocal(rootDirectory, nil, nil)
	entries, collectError := local.Collect(context.Background())
	if collectError != nil {
		t.Fatalf("collect: %v", collectError)
	}

	byPath := collectedPaths(entries)
	expectations := []struct {
		path string
		kind string
	}{
		{path: "src", kind: types.NodeTypeDirectory},
		{path: "src/index.js", kind: types.NodeTypeFile},
		{path: "README.md", kind: types.NodeTypeFile},
		{path: "empty", kind: types.NodeTypeDirectory},
	}
	for _, expectation := range expectations {
		entry, found := byPath[expectation.path]
		if !found {
			t.Fatalf("expected entry for %s, collected %v", expectation.path, byPath)
		}
		if entry.Kind != expectation.kind {
			t.Fatalf("expected kind %s for %s, got %s", expectation.kind, expectation.path, entry.Kind)
		}
	}

	fileEntry := byPath["src/index.js"]
	if fileEntry.SizeBytes == 0 {
		t.Fatalf("expected non-zero size for src/index.js")
	}
	if fileEntry.Metadata["lastModified"] == "" {
		t.Fatalf("expected lastModified metadata for src/index.js")
	}
}

func TestLocalCollectAppliesExclusionAtListingTime(t *testing.T) {
	rootDirectory := t.TempDir()
	writeTestFile(t, rootDirectory, "node_modules/left-pad/index.js", "x")
	writeTestFile(t, rootDirectory, "src/app.js", "x")
	writeTestFile(t, rootDirectory, "package.json", "{}")

	local := collector.NewLocal(rootDirectory, exclusion.NewSet(exclusion.DefaultTreePatterns...), nil)
	entries, collectError := local.Collect(context.Background())
	if collectError != nil {
		t.Fatalf("collect: %v", collectError)
	}

	byPath := collectedPaths(entries)
	if _, found := byPath["node_modules"]; found {
		t.Fatalf("excluded directory reported")
	}
	if _, found := byPath["node_modules/left-pad"]; found {
		t.Fatalf("excluded subtree descended into")
	}
	if _, found := byPath["package.json"]; found {
		t.Fatalf("excluded file reported")
	}
	if _, found := byPath["src/app.js"]; !found {
		t.Fatalf("expected src/app.js to survive exclusion")
	}
}

func TestLocalCollectSkipsUnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("mode bits are not enforced when running as root")
	}
	rootDirectory := t.TempDir()
	writeTestFile(t, rootDirectory, "open/visible.txt", "x")
	writeTestFile(t, rootDirectory, "sealed/secret.txt", "x")
	sealedPath := filepath.Join(rootDirectory, "sealed")
	if chmodError := os.Chmod(sealedPath, 0o000); chmodError != nil {
		t.Fatalf("chmod sealed: %v", chmodError)
	}
	t.Cleanup(func() { _ = os.Chmod(sealedPath, 0o755) })

	observedCore, observedLogs := observer.New(zap.WarnLevel)
	local := collector.NewLocal(rootDirectory, nil, zap.New(observedCore))
	entries, collectError := local.Collect(context.Background())
	if collectError != nil {
		t.Fatalf("collect: %v", collectError)
	}

	byPath := collectedPaths(entries)
	if _, found := byPath["open/visible.txt"]; !found {
		t.Fatalf("expected readable sibling to be collected, got %v", byPath)
	}
	if _, found := byPath["sealed"]; !found {
		t.Fatalf("expected the unreadable directory itself to be reported")
	}
	if _, found := byPath["sealed/secret.txt"]; found {
		t.Fatalf("unreadable subtree must not be descended into")
	}

	warnings := observedLogs.FilterMessage("skipping unreadable subdirectory").All()
	if len(warnings) != 1 {
		t.Fatalf("expected one skip warning, got %d", len(warnings))
	}
	warnedPath, found := warnings[0].ContextMap()["path"].(string)
	if !found || warnedPath != sealedPath {
		t.Fatalf("expected warning for %s, got %v", sealedPath, warnings[0].ContextMap())
	}
}

func TestLocalCollectUnreadableRootIsFatal(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("mode bits are not enforced when running as root")
	}
	rootDirectory := t.TempDir()
	writeTestFile(t, rootDirectory, "visible.txt", "x")
	if chmodError := os.Chmod(rootDirectory, 0o000); chmodError != nil {
		t.Fatalf("chmod root: %v", chmodError)
	}
	t.Cleanup(func() { _ = os.Chmod(rootDirectory, 0o755) })

	local := collector.NewLocal(rootDirectory, nil, nil)
	_, collectError := local.Collect(context.Background())
	if collectError == nil {
		t.Fatalf("expected error for unreadable root")
	}
	if collector.KindOf(collectError) != collector.KindIO {
		t.Fatalf("expected io kind, got %s", collector.KindOf(collectError))
	}
}

func TestLocalCollectMissingRoot(t *testing.T) {
	local := collector.NewLocal(filepath.Join(t.TempDir(), "absent"), nil, nil)
	_, collectError := local.Collect(context.Background())
	if collectError == nil {
		t.Fatalf("expected error for missing root")
	}
	if collector.KindOf(collectError) != collector.KindNotFound {
		t.Fatalf("expected not_found kind, got %s", collector.KindOf(collectError))
	}
}

func TestLocalCollectRootIsFile(t *testing.T) {
	rootDirectory := t.TempDir()
	writeTestFile(t, rootDirectory, "plain.txt", "x")
	local := collector.NewLocal(filepath.Join(rootDirectory, "plain.txt"), nil, nil)
	_, collectError := local.Collect(context.Background())
	if collectError == nil {
		t.Fatalf("expected error for file root")
	}
	if collector.KindOf(collectError) != collector.KindInput {
		t.Fatalf("expected input kind, got %s", collector.KindOf(collectError))
	}
}

// Package types defines every cross-package data structure used by the repomap CLI and server.
package types

import "strings"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	CommandTree   = "tree"
	CommandStats  = "stats"
	CommandReport = "report"

	FormatRaw  = "raw"
	FormatJSON = "json"
)

// ExtensionNone is the histogram bucket for file names without an extension.
const ExtensionNone = "no extension"

// PathEntry is one discovered filesystem or repository object before folding.
type PathEntry struct {
	Segments  []string
	Kind      string
	SizeBytes int64
	Metadata  map[string]string
}

// Path returns the slash-joined form of the entry's segments.
func (entry PathEntry) Path() string {
	return strings.Join(entry.Segments, "/")
}

// TreeNode is one node of the folded hierarchical structure.
// Children is nil for files and non-nil, possibly empty, for directories.
type TreeNode struct {
	Name      string            `json:"name"`
	Kind      string            `json:"type"`
	SizeBytes int64             `json:"size,omitempty"`
	Children  []*TreeNode       `json:"children,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsDirectory reports whether the node represents a directory.
func (node *TreeNode) IsDirectory() bool {
	return node.Kind == NodeTypeDirectory
}

// StatsSummary captures aggregate information derived from a built tree.
type StatsSummary struct {
	TotalFiles       int            `json:"totalFiles"`
	TotalDirectories int            `json:"totalDirectories"`
	TotalSizeBytes   int64          `json:"totalSizeBytes"`
	TotalSize        string         `json:"totalSize"`
	FileTypes        map[string]int `json:"fileTypes"`
	MaxDepth         int            `json:"maxDepth"`
}

// Report is the persisted artifact: generation timestamp, summary, and tree.
type Report struct {
	GeneratedAt string       `json:"generatedAt"`
	Summary     StatsSummary `json:"summary"`
	Tree        *TreeNode    `json:"tree"`
}

// RepoIdentifier names a remote repository and the ref whose tree is listed.
type RepoIdentifier struct {
	Owner      string
	Repository string
	Reference  string
}

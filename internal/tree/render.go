package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/temirov/repomap/internal/types"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
)

// Render returns the ASCII-art representation of the tree. The root itself is
// not printed; each child contributes one line consisting of the inherited
// prefix, a connector, and the node name. Output is byte-identical across
// repeated calls on the same tree.
func Render(root *types.TreeNode) string {
	var buffer bytes.Buffer
	Fprint(&buffer, root)
	return buffer.String()
}

// NameFormatter produces the display form of a node's name.
type NameFormatter func(node *types.TreeNode) string

func plainName(node *types.TreeNode) string {
	return node.Name
}

// Fprint writes the ASCII-art representation of the tree to the writer.
func Fprint(writer io.Writer, root *types.TreeNode) {
	FprintFormatted(writer, root, plainName)
}

// FprintFormatted writes the tree using the provided name formatter, allowing
// callers to decorate names (terminal colors) without touching structure.
func FprintFormatted(writer io.Writer, root *types.TreeNode, formatName NameFormatter) {
	if root == nil {
		return
	}
	if formatName == nil {
		formatName = plainName
	}
	renderChildren(writer, root, "", formatName)
}

func renderChildren(writer io.Writer, node *types.TreeNode, prefix string, formatName NameFormatter) {
	childCount := len(node.Children)
	for childIndex, childNode := range node.Children {
		isLastChild := childIndex == childCount-1
		connector := treeBranchConnector
		childPrefix := prefix + treeBranchPadding
		if isLastChild {
			connector = treeLastConnector
			childPrefix = prefix + treeLastPadding
		}
		fmt.Fprintf(writer, "%s%s%s\n", prefix, connector, formatName(childNode))
		if childNode.IsDirectory() {
			renderChildren(writer, childNode, childPrefix, formatName)
		}
	}
}

// MarshalRecord serializes the tree as an indented JSON record preserving
// name, kind, size, children, and metadata.
func MarshalRecord(root *types.TreeNode) (string, error) {
	encoded, marshalError := json.MarshalIndent(root, "", "  ")
	if marshalError != nil {
		return "", marshalError
	}
	return string(encoded), nil
}

// UnmarshalRecord rebuilds a tree from its JSON record. Sibling ordering is
// already baked into the record, so no re-sorting happens here.
func UnmarshalRecord(encoded []byte) (*types.TreeNode, error) {
	var root types.TreeNode
	if unmarshalError := json.Unmarshal(encoded, &root); unmarshalError != nil {
		return nil, fmt.Errorf("decoding tree record: %w", unmarshalError)
	}
	return &root, nil
}

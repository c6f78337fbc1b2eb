// Package tree folds flat path entries into a deterministic hierarchical
// structure and renders it.
package tree

import (
	"sort"

	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/types"
)

// Build folds the entries into a tree under a synthetic root node. Intermediate
// directories implied by multi-segment paths are synthesized on first
// reference. When an entry names a position already occupied by a node of a
// different kind, the first definition wins and the conflicting entry is
// dropped. The result does not depend on the order of the input entries:
// after folding, every node's children are sorted directories-first, then
// ascending byte-wise by name within each kind.
func Build(entries []types.PathEntry, excludes *exclusion.Set) *types.TreeNode {
	root := &types.TreeNode{
		Name:     "",
		Kind:     types.NodeTypeDirectory,
		Children: []*types.TreeNode{},
	}
	for _, entry := range entries {
		if len(entry.Segments) == 0 {
			continue
		}
		if excludes.Matches(entry.Path()) {
			continue
		}
		insertEntry(root, entry)
	}
	sortChildren(root)
	return root
}

// insertEntry descends from the root along the entry's segments, synthesizing
// intermediate directories, and attaches the final node.
func insertEntry(root *types.TreeNode, entry types.PathEntry) {
	currentNode := root
	for _, segment := range entry.Segments[:len(entry.Segments)-1] {
		childNode := findChild(currentNode, segment)
		if childNode == nil {
			childNode = &types.TreeNode{
				Name:     segment,
				Kind:     types.NodeTypeDirectory,
				Children: []*types.TreeNode{},
			}
			currentNode.Children = append(currentNode.Children, childNode)
		}
		if !childNode.IsDirectory() {
			// A file already occupies this position; keep the first definition.
			return
		}
		currentNode = childNode
	}

	finalSegment := entry.Segments[len(entry.Segments)-1]
	existingNode := findChild(currentNode, finalSegment)
	if existingNode != nil {
		if existingNode.Kind != entry.Kind {
			return
		}
		// A synthesized intermediate directory gains the metadata of its
		// explicitly listed entry.
		if existingNode.Metadata == nil {
			existingNode.Metadata = entry.Metadata
		}
		if existingNode.SizeBytes == 0 {
			existingNode.SizeBytes = entry.SizeBytes
		}
		return
	}

	newNode := &types.TreeNode{
		Name:     finalSegment,
		Kind:     entry.Kind,
		Metadata: entry.Metadata,
	}
	if entry.Kind == types.NodeTypeDirectory {
		newNode.Children = []*types.TreeNode{}
	} else {
		newNode.SizeBytes = entry.SizeBytes
	}
	currentNode.Children = append(currentNode.Children, newNode)
}

func findChild(parentNode *types.TreeNode, name string) *types.TreeNode {
	for _, childNode := range parentNode.Children {
		if childNode.Name == name {
			return childNode
		}
	}
	return nil
}

// sortChildren recursively orders every node's children: directories precede
// files, then names ascend in byte-wise order within each kind.
func sortChildren(node *types.TreeNode) {
	sort.SliceStable(node.Children, func(leftIndex, rightIndex int) bool {
		leftChild := node.Children[leftIndex]
		rightChild := node.Children[rightIndex]
		if leftChild.IsDirectory() != rightChild.IsDirectory() {
			return leftChild.IsDirectory()
		}
		return leftChild.Name < rightChild.Name
	})
	for _, childNode := range node.Children {
		if childNode.IsDirectory() {
			sortChildren(childNode)
		}
	}
}

// Package stats derives aggregate summaries from a built tree.
package stats

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/temirov/repomap/internal/types"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

var countPrinter = message.NewPrinter(language.English)

// Summarize walks the tree once depth-first and accumulates file and
// directory counts, the total byte size, a lowercased file-extension
// histogram, and the maximum depth reached. The synthetic root is not
// counted; its immediate children sit at depth one.
func Summarize(root *types.TreeNode) types.StatsSummary {
	summary := types.StatsSummary{FileTypes: map[string]int{}}
	if root != nil {
		for _, childNode := range root.Children {
			accumulate(childNode, 1, &summary)
		}
	}
	summary.TotalSize = FormatSize(summary.TotalSizeBytes)
	return summary
}

func accumulate(node *types.TreeNode, depth int, summary *types.StatsSummary) {
	if depth > summary.MaxDepth {
		summary.MaxDepth = depth
	}
	if node.IsDirectory() {
		summary.TotalDirectories++
		for _, childNode := range node.Children {
			accumulate(childNode, depth+1, summary)
		}
		return
	}
	summary.TotalFiles++
	summary.TotalSizeBytes += node.SizeBytes
	summary.FileTypes[ExtensionOf(node.Name)]++
}

// ExtensionOf returns the lowercased substring after the last dot of the
// name, or the sentinel bucket when the name carries no extension.
func ExtensionOf(name string) string {
	dotIndex := strings.LastIndex(name, ".")
	if dotIndex < 0 || dotIndex == len(name)-1 {
		return types.ExtensionNone
	}
	return strings.ToLower(name[dotIndex+1:])
}

// FormatSize renders a byte count using base-1024 units, choosing the largest
// unit whose scaled value is at least one. Zero renders as "0 Bytes".
func FormatSize(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "0 " + sizeUnits[0]
	}
	value := float64(sizeBytes)
	unitIndex := 0
	for value >= 1024 && unitIndex < len(sizeUnits)-1 {
		value /= 1024
		unitIndex++
	}
	if unitIndex == 0 {
		return fmt.Sprintf("%d %s", sizeBytes, sizeUnits[0])
	}
	formatted := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
	return formatted + " " + sizeUnits[unitIndex]
}

// FormatCount renders an integer with locale-aware digit grouping.
func FormatCount(count int) string {
	return countPrinter.Sprintf("%d", count)
}

// Package report assembles the persisted mapping artifact and its markdown
// and HTML documentation renderings.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/temirov/repomap/internal/stats"
	"github.com/temirov/repomap/internal/tree"
	"github.com/temirov/repomap/internal/types"
)

const (
	markdownTitle            = "# Repository Map"
	markdownSummaryHeading   = "## Summary"
	markdownTreeHeading      = "## Directory Tree"
	markdownFileTypesHeading = "## File Types"
)

// Generate derives the summary from the tree and stamps the artifact with the
// collection time in RFC 3339 form.
func Generate(root *types.TreeNode, collectedAt time.Time) types.Report {
	return types.Report{
		GeneratedAt: collectedAt.UTC().Format(time.RFC3339),
		Summary:     stats.Summarize(root),
		Tree:        root,
	}
}

// MarshalJSON renders the artifact as the persisted JSON document with
// top-level generatedAt, summary, and tree keys.
func MarshalJSON(generatedReport types.Report) (string, error) {
	encoded, marshalError := json.MarshalIndent(generatedReport, "", "  ")
	if marshalError != nil {
		return "", fmt.Errorf("marshaling report: %w", marshalError)
	}
	return string(encoded), nil
}

// RenderMarkdown produces the markdown documentation for the artifact: a
// summary table, the fenced ASCII tree, and the file type histogram.
func RenderMarkdown(generatedReport types.Report) string {
	var buffer bytes.Buffer
	summary := generatedReport.Summary

	buffer.WriteString(markdownTitle + "\n\n")
	buffer.WriteString("Generated at " + generatedReport.GeneratedAt + "\n\n")

	buffer.WriteString(markdownSummaryHeading + "\n\n")
	buffer.WriteString("| Metric | Value |\n")
	buffer.WriteString("| --- | --- |\n")
	fmt.Fprintf(&buffer, "| Files | %s |\n", stats.FormatCount(summary.TotalFiles))
	fmt.Fprintf(&buffer, "| Directories | %s |\n", stats.FormatCount(summary.TotalDirectories))
	fmt.Fprintf(&buffer, "| Total size | %s |\n", summary.TotalSize)
	fmt.Fprintf(&buffer, "| Max depth | %d |\n", summary.MaxDepth)
	buffer.WriteString("\n")

	buffer.WriteString(markdownTreeHeading + "\n\n")
	buffer.WriteString("```\n")
	tree.Fprint(&buffer, generatedReport.Tree)
	buffer.WriteString("```\n\n")

	buffer.WriteString(markdownFileTypesHeading + "\n\n")
	buffer.WriteString("| Extension | Count |\n")
	buffer.WriteString("| --- | --- |\n")
	for _, extensionName := range orderedExtensions(summary.FileTypes) {
		fmt.Fprintf(&buffer, "| %s | %d |\n", extensionName, summary.FileTypes[extensionName])
	}

	return buffer.String()
}

// RenderHTML converts the markdown documentation to an HTML document body.
func RenderHTML(generatedReport types.Report) (string, error) {
	markdownSource := RenderMarkdown(generatedReport)
	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buffer bytes.Buffer
	if convertError := converter.Convert([]byte(markdownSource), &buffer); convertError != nil {
		return "", fmt.Errorf("converting report markdown: %w", convertError)
	}
	return buffer.String(), nil
}

// orderedExtensions returns histogram keys sorted by descending count, then
// ascending name, so rendered tables are deterministic.
func orderedExtensions(histogram map[string]int) []string {
	names := make([]string, 0, len(histogram))
	for extensionName := range histogram {
		names = append(names, extensionName)
	}
	sort.Slice(names, func(leftIndex, rightIndex int) bool {
		leftName := names[leftIndex]
		rightName := names[rightIndex]
		if histogram[leftName] != histogram[rightName] {
			return histogram[leftName] > histogram[rightName]
		}
		return leftName < rightName
	})
	return names
}

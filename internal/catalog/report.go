package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SummaryReport renders summary_report.md.
func SummaryReport(cat *Catalog) string {
	var b strings.Builder
	s := cat.Statistics
	fmt.Fprintf(&b, "# PDF Catalog Summary\n\n")
	if cat.Metadata.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", cat.Metadata.Source)
	}
	fmt.Fprintf(&b, "Created: %s\n", cat.Metadata.Created.Format(time.RFC3339))
	fmt.Fprintf(&b, "Detection DPI: %d\n", cat.Metadata.DetectionDPI)
	fmt.Fprintf(&b, "Total Pages: %d\n", cat.Metadata.TotalPages)
	fmt.Fprintf(&b, "Total Elements: %d\n", s.TotalElements)

	fmt.Fprintf(&b, "\n## Statistics\n\n")
	fmt.Fprintf(&b, "- Text elements extracted: %d\n", s.TextExtracted)
	fmt.Fprintf(&b, "- Image/table references: %d\n", s.ImageReferences)

	fmt.Fprintf(&b, "\n## Element Types\n\n")
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %d\n", t, s.ByType[t])
	}

	fmt.Fprintf(&b, "\n## Elements by Page\n\n")
	pages := make([]int, 0, len(s.ByPage))
	for p := range s.ByPage {
		n, err := strconv.Atoi(p)
		if err == nil {
			pages = append(pages, n)
		}
	}
	sort.Ints(pages)
	for _, p := range pages {
		fmt.Fprintf(&b, "- Page %d: %d elements\n", p, s.ByPage[strconv.Itoa(p)])
	}

	if len(cat.Metadata.SkippedPages) > 0 {
		fmt.Fprintf(&b, "\n## Skipped Pages\n\n")
		for _, sp := range cat.Metadata.SkippedPages {
			fmt.Fprintf(&b, "- Page %d: %s\n", sp.Page+1, sp.Reason)
		}
	}
	return b.String()
}

package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/lilnasy/astro-optimize-pictures/internal/fileutil"
	"github.com/lilnasy/astro-optimize-pictures/internal/plan"
)

const indent = "    "

// Render writes the module: one import per identifier, then the default
// export. Widths are numeric keys and identifiers are bare references.
func (m *Manifest) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, imp := range m.Imports {
		fmt.Fprintf(bw, "import %s from %s\n", imp.Identifier, quote(imp.Specifier))
	}
	bw.WriteString("export default {")
	for i, entry := range m.Entries {
		if i > 0 {
			bw.WriteByte(',')
		}
		writeEntry(bw, entry)
	}
	if len(m.Entries) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("} as const\n")
	return bw.Flush()
}

func writeEntry(w *bufio.Writer, e Entry) {
	fmt.Fprintf(w, "\n%s%s: {", indent, quote(e.Key))
	fmt.Fprintf(w, "\n%s\"original\": %s,", indent+indent, e.Original)
	fmt.Fprintf(w, "\n%s\"meta\": {", indent+indent)
	fmt.Fprintf(w, "\n%s\"original\": %s,", indent+indent+indent, e.Meta.Original)
	fmt.Fprintf(w, "\n%s\"width\": %d,", indent+indent+indent, e.Meta.Width)
	fmt.Fprintf(w, "\n%s\"height\": %d", indent+indent+indent, e.Meta.Height)
	if e.Meta.Preview != "" {
		fmt.Fprintf(w, ",\n%s\"preview\": %s", indent+indent+indent, quote(e.Meta.Preview))
	}
	fmt.Fprintf(w, "\n%s}", indent+indent)

	for _, format := range plan.Formats {
		widths, ok := e.Variants[format]
		if !ok {
			continue
		}
		fmt.Fprintf(w, ",\n%s%s: {", indent+indent, quote(string(format)))
		keys := make([]int, 0, len(widths))
		for width := range widths {
			keys = append(keys, width)
		}
		slices.Sort(keys)
		for i, width := range keys {
			if i > 0 {
				w.WriteByte(',')
			}
			fmt.Fprintf(w, "\n%s%d: %s", indent+indent+indent, width, widths[width])
		}
		fmt.Fprintf(w, "\n%s}", indent+indent)
	}
	fmt.Fprintf(w, "\n%s}", indent)
}

// quote renders s as a JavaScript string literal.
func quote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// Write renders the manifest to path atomically.
func (m *Manifest) Write(path string) error {
	if err := fileutil.WriteAtomic(path, 0o644, m.Render); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

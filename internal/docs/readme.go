// Package docs renders the command reference from the command registry.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

// CommandSections renders every command in reg as markdown, grouped by
// category in help order.
func CommandSections(reg *cmd.Registry, prefix string) string {
	cats, groups := reg.ByCategory()
	slices.SortStableFunc(cats, func(a, b string) int {
		return config.CategoryWeight(a) - config.CategoryWeight(b)
	})

	var buf bytes.Buffer
	for i, cat := range cats {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "### %s\n\n", cat)
		for _, c := range groups[cat] {
			root := cmd.Root(c)
			line := prefix + c.Name()
			if u, ok := root.(cmd.Usage); ok && u.Usage() != "" {
				line += " " + u.Usage()
			}
			fmt.Fprintf(&buf, "- **`%s`** %s", line, c.Description())
			if a, ok := root.(cmd.Aliased); ok && len(a.Aliases()) > 0 {
				fmt.Fprintf(&buf, " (aliases: %s)", prefix+strings.Join(a.Aliases(), ", "+prefix))
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// Render executes tmpl with CommandSections and writes the result to w.
func Render(w io.Writer, tmpl string, reg *cmd.Registry, prefix string) error {
	t, err := template.New("readme").Parse(tmpl)
	if err != nil {
		return errors.Wrap(err, "parse readme template")
	}
	data := struct {
		Prefix          string
		CommandSections string
	}{
		Prefix:          prefix,
		CommandSections: CommandSections(reg, prefix),
	}
	return errors.Wrap(t.Execute(w, data), "render readme")
}

// UpdateReadme renders tmplPath into outPath.
func UpdateReadme(tmplPath, outPath string, reg *cmd.Registry, prefix string) error {
	tmpl, err := os.ReadFile(tmplPath)
	if err != nil {
		return errors.Wrap(err, "read readme template")
	}
	var out bytes.Buffer
	if err := Render(&out, string(tmpl), reg, prefix); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(outPath, out.Bytes(), 0o644), "write readme")
}

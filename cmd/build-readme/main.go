// Command build-readme regenerates README.md from README.md.tmpl and the
// registered commands.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/keshon/domme-music/internal/commands/core"
	"github.com/keshon/domme-music/internal/commands/music"
	"github.com/keshon/domme-music/internal/docs"
	"github.com/keshon/domme-music/pkg/cmd"
)

func main() {
	tmpl := flag.String("template", "README.md.tmpl", "readme template")
	out := flag.StringP("out", "o", "README.md", "output file")
	prefix := flag.String("prefix", "!", "command prefix shown in the reference")
	flag.Parse()

	// metadata only; nothing here runs a command
	reg := cmd.NewRegistry()
	reg.MustRegister(core.Commands(reg, core.Deps{Prefix: *prefix})...)
	reg.MustRegister(music.Commands(&music.Service{Prefix: *prefix})...)

	if err := docs.UpdateReadme(*tmpl, *out, reg, *prefix); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("%s updated with %d commands\n", *out, len(reg.GetAll()))
}

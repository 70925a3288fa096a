package docs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keshon/domme-music/internal/commands/core"
	"github.com/keshon/domme-music/internal/commands/music"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/pkg/cmd"
)

func registry() *cmd.Registry {
	reg := cmd.NewRegistry()
	reg.MustRegister(core.Commands(reg, core.Deps{Prefix: "!"})...)
	reg.MustRegister(music.Commands(&music.Service{Prefix: "!"})...)
	return reg
}

func TestCommandSections(t *testing.T) {
	out := CommandSections(registry(), "!")

	info := strings.Index(out, "### "+config.CategoryInfo)
	musicSection := strings.Index(out, "### "+config.CategoryMusic)
	playback := strings.Index(out, "### "+config.CategoryPlayback)
	if info < 0 || musicSection < 0 || playback < 0 || !(info < musicSection && musicSection < playback) {
		t.Fatalf("sections missing or out of order:\n%s", out)
	}
	for _, want := range []string{
		"- **`!play <title or URL>`** Play a track or add it to the queue (aliases: !p)",
		"- **`!leave`** Leave the voice channel (aliases: !disconnect, !dc)",
		"- **`!ping`** Check bot latency",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing line %q", want)
		}
	}
}

func TestUpdateReadme(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "README.md")
	if err := os.WriteFile(tmpl, []byte("# Bot\n\nPrefix: `{{.Prefix}}`\n\n{{.CommandSections}}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := UpdateReadme(tmpl, out, registry(), "!"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), "# Bot\n\nPrefix: `!`\n\n### ") {
		t.Errorf("unexpected readme head:\n%s", b)
	}

	if err := UpdateReadme(filepath.Join(dir, "missing.tmpl"), out, registry(), "!"); err == nil {
		t.Error("missing template accepted")
	}
}

// Command cli resolves queries against the configured audio node without
// connecting to Discord. Useful for checking node credentials and sources.
//
//	cli --source soundcloud "lofi beats"
//	cli https://www.youtube.com/watch?v=dQw4w9WgXcQ
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/logging"
	"github.com/keshon/domme-music/internal/music/lavalink"
	"github.com/keshon/domme-music/internal/music/source_resolver"
	"github.com/keshon/domme-music/pkg/util"
)

func main() {
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	source := flag.StringP("source", "s", "", "youtube, soundcloud or radio (default: auto-detect)")
	limit := flag.IntP("limit", "n", 10, "maximum results to print")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	flag.Parse()

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: cli [flags] <query or URL>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*envFile, *source, query, *limit, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(envFile, source, query string, limit int, timeout time.Duration) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger, closer := logging.Setup(logging.Options{Level: cfg.LogLevel, Debug: cfg.Debug})
	defer closer.Close()

	node := lavalink.New(lavalink.Config{
		Node: lavalink.NodeConfig{
			Name:     cfg.LavalinkName,
			Host:     cfg.LavalinkHost,
			Port:     cfg.LavalinkPort,
			Password: cfg.LavalinkPassword,
			Secure:   cfg.LavalinkSecure,
		},
		Logger: logger,
	})
	resolver := source_resolver.New(node, source_resolver.Config{
		DefaultSource: cfg.SearchSource,
		Logger:        logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tracks, err := resolver.ResolveFrom(ctx, query, source)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("no results")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tAUTHOR\tLENGTH\tSOURCE\tURI")
	for i, t := range tracks[:min(len(tracks), max(limit, 1))] {
		length := util.FormatDuration(t.Duration)
		if t.IsStream {
			length = "LIVE"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, util.Truncate(t.DisplayTitle(), 60), t.Author, length, t.SourceName, t.URI)
	}
	return w.Flush()
}

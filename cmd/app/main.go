package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultgraph/internal"
	"github.com/starford/vaultgraph/internal/graphservice"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/suggest"
	pkgconfig "github.com/starford/vaultgraph/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// withRuntime runs fn against a freshly opened vault runtime.
func withRuntime(cmd *cli.Command, fn func(*internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := internal.OpenRuntime(internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func build(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		if cmd.Bool("reset") {
			if err := rt.Service.ResetCache(); err != nil {
				return err
			}
		}
		res, err := rt.Service.Build(ctx, graphservice.BuildRequest{
			Full:           cmd.Bool("full"),
			IncludeOrphans: cmd.Bool("include-orphans"),
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s build %s\n", res.Mode, res.BuildID)
		fmt.Printf("  %s nodes, %s edges, %s reparsed in %s\n",
			humanize.Comma(int64(res.NodeCount)), humanize.Comma(int64(res.EdgeCount)),
			humanize.Comma(int64(res.Reparsed)), res.Duration.Round(time.Millisecond))
		for _, d := range res.Invalid {
			fmt.Printf("  invalid  %s: %s\n", d.Path, strings.Join(d.Errors, "; "))
		}
		for _, bl := range res.BrokenLinks {
			fmt.Printf("  broken   %s -> %s\n", bl.Source, bl.Target)
		}
		if n := len(res.Orphans); n > 0 {
			fmt.Printf("  %s\n", humanize.Plural(n, "orphan", "orphans"))
		}
		return nil
	})
}

func search(ctx context.Context, cmd *cli.Command) error {
	seeds := cmd.Args().Slice()
	if len(seeds) == 0 {
		return fmt.Errorf("search: at least one seed path or keyword is required")
	}
	req := graphservice.SearchRequest{
		Seeds:     seeds,
		Threshold: cmd.Float("threshold"),
		MaxHops:   int(cmd.Int("max-hops")),
		Limit:     int(cmd.Int("limit")),
	}
	for _, l := range cmd.IntSlice("layer") {
		if !models.Layer(l).Valid() {
			return fmt.Errorf("search: layer %d out of range 1-5", l)
		}
		req.Layers = append(req.Layers, models.Layer(l))
	}

	return withRuntime(cmd, func(rt *internal.Runtime) error {
		hits, err := rt.Service.Search(ctx, req)
		if err != nil {
			return err
		}
		for i, h := range hits {
			fmt.Printf("%3d. %.3f  %-40s  %s  hops=%d\n", i+1, h.Score, h.NodeID, h.Layer, h.Hops)
		}
		return nil
	})
}

func navigate(ctx context.Context, cmd *cli.Command) error {
	p := cmd.Args().First()
	if p == "" {
		return fmt.Errorf("navigate: path is required")
	}
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		nav, err := rt.Service.Navigate(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s, %s, pagerank %.4f)\n", nav.Node.ID, nav.Node.Title, nav.Node.Layer, nav.PageRank)
		if nav.Parent != nil {
			fmt.Printf("  parent        %s\n", nav.Parent.NodeID)
		}
		printRefs("outbound", nav.Outbound)
		printRefs("inbound", nav.Inbound)
		printRefs("children", nav.Children)
		printRefs("siblings", nav.Siblings)
		printRefs("relationships", nav.Relationships)
		return nil
	})
}

func printRefs(label string, refs []graphservice.NodeRef) {
	if len(refs) == 0 {
		return
	}
	fmt.Printf("  %-13s %s\n", label, humanize.Plural(len(refs), "node", "nodes"))
	for _, r := range refs {
		fmt.Printf("    %-40s  %.2f\n", r.NodeID, r.Weight)
	}
}

func suggestLinks(ctx context.Context, cmd *cli.Command) error {
	req := suggest.Request{
		Path:           cmd.String("path"),
		Tags:           cmd.StringSlice("tag"),
		ContentHint:    cmd.String("hint"),
		MinScore:       cmd.Float("min-score"),
		MaxSuggestions: int(cmd.Int("max")),
	}
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		out, err := rt.Service.SuggestLinks(ctx, req)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			fmt.Println("no suggestions")
			return nil
		}
		for _, s := range out {
			fmt.Printf("%.3f  %-40s  %s\n", s.Score, s.Target, s.Reason)
		}
		return nil
	})
}

func stale(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		rep := rt.Service.Stale(ctx)
		fmt.Printf("%s stale (ratio %.2f", humanize.Plural(len(rep.Paths), "node", "nodes"), rep.Ratio)
		if !rep.UpdatedAt.IsZero() {
			fmt.Printf(", updated %s", humanize.Time(rep.UpdatedAt))
		}
		fmt.Println(")")
		if rep.NeedsRebuild {
			fmt.Println("full rebuild recommended")
		}
		for _, p := range rep.Paths {
			fmt.Printf("  %s\n", p)
		}
		return nil
	})
}

func main() {
	cmd := &cli.Command{
		Name:    "vaultgraph",
		Usage:   "Knowledge graph indexing and spreading-activation retrieval over a Markdown vault",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE events and the vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the graph tools over MCP stdio",
				Action: serveMCP,
			},
			{
				Name:   "build",
				Usage:  "Build or incrementally refresh the graph",
				Action: build,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "Reparse every document"},
					&cli.BoolFlag{Name: "include-orphans", Usage: "Keep nodes without edges"},
					&cli.BoolFlag{Name: "reset", Usage: "Delete the cache before building"},
				},
			},
			{
				Name:      "search",
				Usage:     "Spreading activation search from seed paths or keywords",
				ArgsUsage: "<seed>...",
				Action:    search,
				Flags: []cli.Flag{
					&cli.IntSliceFlag{Name: "layer", Aliases: []string{"l"}, Usage: "Only return nodes in these layers"},
					&cli.FloatFlag{Name: "threshold", Usage: "Minimum activation"},
					&cli.IntFlag{Name: "max-hops", Usage: "Maximum traversal depth"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum results"},
				},
			},
			{
				Name:      "navigate",
				Usage:     "Show links, hierarchy and relationships of a note",
				ArgsUsage: "<path>",
				Action:    navigate,
			},
			{
				Name:   "suggest",
				Usage:  "Suggest link targets for a note or a set of tags",
				Action: suggestLinks,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Existing note path"},
					&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "Tags of a planned note"},
					&cli.StringFlag{Name: "hint", Usage: "Draft text of a planned note"},
					&cli.FloatFlag{Name: "min-score", Usage: "Minimum score"},
					&cli.IntFlag{Name: "max", Usage: "Maximum suggestions"},
				},
			},
			{
				Name:   "stale",
				Usage:  "Show the stale ledger",
				Action: stale,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

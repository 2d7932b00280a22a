// chart-herald automates Helm chart releases for a GitHub-hosted chart
// repository: it discovers changed charts, lints and packages them,
// publishes GitHub releases, and maintains the repository index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/nathantilsley/chart-herald/internal/platform/config"
	"github.com/nathantilsley/chart-herald/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "chart-herald",
		Usage: "Helm chart release automation for GitHub-hosted chart repositories",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "repo-root",
				Usage: "path to the chart repository checkout",
				Value: ".",
			},
			&cli.StringFlag{
				Name:    "revision-range",
				Aliases: []string{"r"},
				Usage:   "git revision range to inspect for changed charts",
				Value:   "HEAD^..HEAD",
			},
		},
		Commands: []*cli.Command{
			discoverCommand(),
			releaseCommand(),
			releasesCommand(),
			updateCommand(),
			indexCommand(),
			frontpageCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildContainer loads config, creates the logger, and wires all
// dependencies. The returned cleanup flushes telemetry.
func buildContainer(ctx context.Context, cmd *cli.Command) (*Container, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	log := logger.New(cfg.LogLevel)

	c, err := NewContainer(ctx, cfg, cmd.String("repo-root"), log)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}
	return c, cleanup, nil
}

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "List the charts affected by a revision range without releasing anything",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			discovery, err := c.Discover(ctx, cmd.String("revision-range"))
			if err != nil {
				return err
			}

			for _, ref := range discovery.Refs() {
				fmt.Printf("%s\t%s\t%s\n", ref.Type, ref.Name, ref.Directory)
			}
			c.Logger.Info("discovery complete",
				"application", len(discovery.Application),
				"library", len(discovery.Library),
				"total", discovery.Total)
			return nil
		},
	}
}

func releaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "Release changed charts and update the repository index",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			summary, err := c.ReleaseService.Execute(ctx, cmd.String("revision-range"))
			if err != nil {
				return err
			}

			c.Logger.Info("release run complete",
				"processed", summary.Processed,
				"released", summary.Released,
				"skipped", summary.Skipped,
				"failed", summary.Failed)

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d charts failed", summary.Failed, summary.Processed)
			}
			return nil
		},
	}
}

func releasesCommand() *cli.Command {
	return &cli.Command{
		Name:  "releases",
		Usage: "List chart releases published on the release host",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "maximum releases to list, 0 for all",
				Value:   20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			releases, err := c.ReleaseService.ListReleases(ctx, int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			for _, r := range releases {
				fmt.Printf("%s\t%s\n", r.Tag, r.URL)
			}
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Refresh chart dependency locks and bump deployment manifests for changed charts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "commit",
				Usage: "commit the updated files",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return c.UpdateService.Execute(ctx, cmd.String("revision-range"), cmd.Bool("commit"))
		},
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Regenerate a Helm repository index over a directory of packaged charts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "directory containing packaged chart archives",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "base URL recorded for chart downloads",
			},
			&cli.StringFlag{
				Name:  "merge",
				Usage: "existing index file to merge into the result",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			url := cmd.String("url")
			if url == "" {
				url = c.Config.ReleaseDownloadURL()
			}
			return c.ChartTool.GenerateRepoIndex(ctx, cmd.String("dir"), url, cmd.String("merge"))
		},
	}
}

func frontpageCommand() *cli.Command {
	return &cli.Command{
		Name:  "frontpage",
		Usage: "Render the repository frontpage from the release index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "file to write, - for stdout",
				Value:   "index.md",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, cleanup, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			idx, err := c.IndexStore.Load(ctx, c.Config.IndexPath)
			if err != nil {
				return fmt.Errorf("loading index: %w", err)
			}

			page, err := c.Frontpage.Render(ctx, idx)
			if err != nil {
				return fmt.Errorf("rendering frontpage: %w", err)
			}

			if out := cmd.String("output"); out != "-" {
				return os.WriteFile(out, page, 0o644)
			}
			_, err = os.Stdout.Write(page)
			return err
		},
	}
}

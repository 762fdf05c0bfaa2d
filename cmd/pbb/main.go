// Command pbb is a minimal CLI front-end over branchback's repository
// engine. It owns argument parsing and human-readable output only; all
// the actual version-control logic lives in internal/repository.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/jepayne1138/branchback/internal/catalog"
	"github.com/jepayne1138/branchback/internal/config"
	"github.com/jepayne1138/branchback/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var runErr error
	switch cmd {
	case "init":
		runErr = runInit(ctx, cwd, cfg, logger)
	case "save":
		runErr = runSave(ctx, cwd, cfg, logger, args)
	case "load":
		runErr = runLoad(ctx, cwd, cfg, logger, args)
	case "branch":
		runErr = runBranch(ctx, cwd, cfg, logger, args)
	case "list":
		runErr = runList(ctx, cwd, cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pbb <command> [arguments]

commands:
  init                               initialize a repository in the current directory
  save [-l label] [-m msg] [-u user] record a snapshot on the current branch
  load [-f] [-c name] <snapshot>     check out a branch or snapshot digest, optionally creating a new branch there
  branch <name> [snapshot]           create a branch
  list [-b] [-branch name]           list snapshots (optionally filtered to one branch) or list branches`)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.LogFormat == "json" {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

func runInit(ctx context.Context, cwd string, cfg config.Config, logger zerolog.Logger) error {
	_, err := repository.Init(ctx, cwd, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Println("initialized repository in", cwd)
	return nil
}

func runSave(ctx context.Context, cwd string, cfg config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	label := fs.String("l", "", "snapshot label")
	message := fs.String("m", "", "snapshot message")
	user := fs.String("u", "", "snapshot author (defaults to the configured user)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := repository.Open(ctx, cwd, cfg, logger)
	if err != nil {
		return err
	}
	d, err := repo.Snapshot(ctx, *label, *message, *user)
	if err != nil {
		return err
	}
	fmt.Println("saved snapshot", d)
	return nil
}

func runLoad(ctx context.Context, cwd string, cfg config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	force := fs.Bool("f", false, "discard unsaved changes")
	newBranch := fs.String("c", "", "create a new branch at the resolved snapshot and switch to it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("load: a branch name or snapshot digest is required")
	}

	repo, err := repository.Open(ctx, cwd, cfg, logger)
	if err != nil {
		return err
	}
	if err := repo.Checkout(ctx, fs.Arg(0), *force, *newBranch); err != nil {
		return err
	}
	if *newBranch != "" {
		fmt.Println("created and checked out", *newBranch, "at", fs.Arg(0))
		return nil
	}
	fmt.Println("checked out", fs.Arg(0))
	return nil
}

func runBranch(ctx context.Context, cwd string, cfg config.Config, logger zerolog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("branch: a name is required")
	}
	name := args[0]
	from := ""
	if len(args) > 1 {
		from = args[1]
	}

	repo, err := repository.Open(ctx, cwd, cfg, logger)
	if err != nil {
		return err
	}
	if err := repo.CreateBranch(name, from); err != nil {
		return err
	}
	fmt.Println("created branch", name)
	return nil
}

func runList(ctx context.Context, cwd string, cfg config.Config, logger zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	showBranches := fs.Bool("b", false, "list branches instead of snapshots")
	branchFilter := fs.String("branch", "", "limit snapshot listing to one branch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := repository.Open(ctx, cwd, cfg, logger)
	if err != nil {
		return err
	}

	if *showBranches {
		branches, err := repo.ListBranches()
		if err != nil {
			return err
		}
		current, detached, err := repo.CurrentBranchName()
		if err != nil {
			return err
		}
		for _, b := range branches {
			marker := " "
			if !detached && b == current {
				marker = "*"
			}
			fmt.Println(marker, b)
		}
		return nil
	}

	var snapshots []catalog.Snapshot
	if *branchFilter != "" {
		snapshots, err = repo.ListSnapshotsByBranch(ctx, *branchFilter)
	} else {
		snapshots, err = repo.ListSnapshots(ctx)
	}
	if err != nil {
		return err
	}
	for _, s := range snapshots {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Hash, s.Branch, s.Label, s.User, s.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/branchsnap/internal/config"
	"github.com/fgeck/branchsnap/internal/gitrepo"
	"github.com/fgeck/branchsnap/internal/services/snapshot"
	"github.com/fgeck/branchsnap/internal/services/transfer"
	"github.com/fgeck/branchsnap/internal/services/watcher"
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <prev-ref> <new-ref> <flag>",
	Short: "Transfer database state for a branch checkout",
	Long: `Transfer database state for a branch checkout. Meant to be invoked from
the git post-checkout hook, which passes the previous HEAD ref, the new HEAD
ref, and a flag that is 1 for branch checkouts and 0 for file checkouts:

  branchsnap checkout $1 $2 $3

The database state of every branch pointing at the previous HEAD is saved,
then the state saved for the current branch is restored, if any exists.`,
	Args: cobra.ExactArgs(3),
	RunE: runCheckout,
}

func runCheckout(cmd *cobra.Command, args []string) error {
	prevRef, flag := args[0], args[2]

	// File checkouts (git checkout -- path) also fire the hook; only branch
	// checkouts transfer state.
	if flag != "1" {
		log.Debug().Str("flag", flag).Msg("not a branch checkout, skipping")
		return nil
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	repo, err := gitrepo.Open(workDir, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("not inside a git repository")
		return err
	}

	destination, err := repo.CurrentBranch()
	if err != nil {
		return err
	}
	sources, err := repo.BranchesAt(prevRef)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Dump.Dir, 0o755); err != nil {
		log.Error().Err(err).Str("dir", cfg.Dump.Dir).Msg("failed to create dump directory")
		return err
	}

	adapter, err := snapshot.NewAdapter(*cfg, log.Logger, os.Stdout)
	if err != nil {
		log.Error().Err(err).Msg("adapter construction failed")
		return err
	}
	coordinator := watcher.New(ctx, log.Logger, cfg.Watcher)

	release, err := transfer.AcquireLock(cfg.Dump.Dir)
	if err != nil {
		log.Error().Err(err).Msg("failed to lock dump directory")
		return err
	}
	defer release()

	svc := transfer.New(log.Logger, *cfg, adapter, coordinator)
	report, err := svc.Run(ctx, transfer.Request{
		SourceCandidates: sources,
		Destination:      destination,
	})
	if err != nil {
		log.Error().Err(err).Msg("state transfer failed")
		return err
	}

	fmt.Println(report.Message())
	return nil
}

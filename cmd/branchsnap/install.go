package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/branchsnap/internal/gitrepo"
)

const hookScript = `#!/bin/sh
# Installed by branchsnap. Transfers database state on branch checkouts.
branchsnap checkout "$1" "$2" "$3"
`

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the git post-checkout hook",
	Long:  `Install a post-checkout hook in the enclosing repository that invokes branchsnap on every checkout.`,
	RunE:  installHook,
}

func installHook(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	hooksDir, err := gitrepo.HooksDir(workDir)
	if err != nil {
		log.Error().Err(err).Msg("not inside a git repository")
		return err
	}

	hookPath := filepath.Join(hooksDir, "post-checkout")
	if _, err := os.Stat(hookPath); err == nil {
		return fmt.Errorf("a post-checkout hook already exists at %s; refusing to overwrite", hookPath)
	}

	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("create hooks directory: %w", err)
	}
	if err := os.WriteFile(hookPath, []byte(hookScript), 0o755); err != nil { //nolint:gosec // hooks must be executable
		return fmt.Errorf("write hook: %w", err)
	}

	fmt.Printf("Installed post-checkout hook at %s\n", hookPath)
	return nil
}

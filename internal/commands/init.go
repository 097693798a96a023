package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fundsync-dev/fundsync/internal/config"
)

func newInitCommand() *cobra.Command {
	var clientID string
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new fundsync working directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, clientID, force)
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "Streamlabs application client ID")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing fundsync.yaml")

	return cmd
}

func runInit(out io.Writer, dir, clientID string, force bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	cfg.Streamlabs.ClientID = clientID

	// Holds tokens; keep it private.
	if err := os.MkdirAll(filepath.Join(dir, cfg.Storage.DataDir), 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write .env template for the secret.
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); errors.Is(err, fs.ErrNotExist) {
		env := config.EnvClientSecret + "=\n"
		if err := os.WriteFile(envPath, []byte(env), 0o600); err != nil {
			return fmt.Errorf("writing .env: %w", err)
		}
	}

	// Write .gitignore.
	gitignore := cfg.Storage.DataDir + "/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(out, "Initialized fundsync in %s\n", dir)
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bamsammich/mirrorsync/internal/config"
	"github.com/bamsammich/mirrorsync/internal/transport"
)

func newInitCmd(opts *globalOpts) *cobra.Command {
	var (
		ignore   []string
		insecure bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init <remote>",
		Short: "Make the current directory a workspace synced with remote",
		Long: `Write .mirrorsync/config.toml for the workspace directory.

Remote formats:
  host:path
  user@host:path
  sftp://[user@]host[:port]/path`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := transport.ParseLocation(args[0])
			if err != nil {
				return err
			}

			root := opts.workspace
			if root == "" {
				if root, err = os.Getwd(); err != nil {
					return err
				}
			}
			if root, err = filepath.Abs(root); err != nil {
				return err
			}
			if _, err := os.Stat(config.WorkspacePath(root)); err == nil && !force {
				return fmt.Errorf("%s is already a workspace (use --force to overwrite)", root)
			}

			ws := config.Workspace{
				Remote: config.RemoteConfig{
					Host:            loc.Host,
					User:            loc.User,
					Root:            loc.Path,
					Port:            loc.Port,
					KeyFile:         opts.sshKeyFile,
					InsecureHostKey: insecure,
				},
				Sync: config.SyncConfig{
					Ignore:  ignore,
					BWLimit: opts.bwLimitStr,
				},
			}
			if cmd.Flags().Changed("ssh-port") {
				ws.Remote.Port = opts.sshPort
			}
			if ws.Sync.BWLimit != "" {
				if _, err := config.ParseSize(ws.Sync.BWLimit); err != nil {
					return fmt.Errorf("invalid bwlimit: %w", err)
				}
			}
			if err := config.SaveWorkspace(root, ws); err != nil {
				return err
			}
			if !opts.quiet {
				fmt.Fprintf(os.Stdout, "initialized %s -> %s\n", root, loc)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&ignore, "ignore", nil, "gitignore-style pattern to skip (repeatable)")
	cmd.Flags().BoolVar(&insecure, "insecure-host-key", false, "skip known_hosts verification")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing workspace config")
	return cmd
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bamsammich/mirrorsync/internal/engine"
	"github.com/bamsammich/mirrorsync/internal/transport"
	"github.com/bamsammich/mirrorsync/internal/ui"
)

type diffFunc func(ctx context.Context, w *workspace) (*engine.Worklist, error)

// runWorklist opens the workspace, builds a worklist and executes it (or
// prints it under --dry-run).
func (o *globalOpts) runWorklist(cmd *cobra.Command, build diffFunc) error {
	ctx, stop := signalContext()
	defer stop()

	w, err := o.openWorkspace(ctx, cmd)
	if err != nil {
		return err
	}
	if err := w.eng.Load(ctx); err != nil {
		w.close(false)
		return err
	}
	wl, err := build(ctx, w)
	if err != nil {
		w.close(false)
		return err
	}
	if o.dryRun {
		w.close(false)
		ui.PrintWorklist(os.Stdout, wl)
		return nil
	}

	runErr := w.eng.Execute(ctx, wl)
	if ctx.Err() != nil {
		w.local.CleanupTemp()
	}
	stop()
	w.close(true)

	if runErr != nil {
		slog.Error("sync failed", "error", runErr)
		snap := w.collector.Snapshot()
		if snap.Done()-snap.Failed > 0 {
			return &exitError{code: 1}
		}
		return &exitError{code: 2}
	}
	return nil
}

func pathArg(w *workspace, args []string) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	return workspacePath(w.root, args[0])
}

func newPushCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "push [path]",
		Short: "Upload local files that differ from the remote",
		Long: `Upload every local file under path (default: the whole workspace) whose
kind or size differs from the remote copy. Files unchanged since the last sync
are skipped without contacting the server.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.runWorklist(cmd, func(ctx context.Context, w *workspace) (*engine.Worklist, error) {
				p, err := pathArg(w, args)
				if err != nil {
					return nil, err
				}
				return w.eng.UploadDiff(ctx, p)
			})
		},
	}
}

func newPullCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download remote files missing locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runWorklist(cmd, func(ctx context.Context, w *workspace) (*engine.Worklist, error) {
				return w.eng.DownloadDiff(ctx)
			})
		},
	}
}

func newSyncCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local changes, then pull remote-only files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runWorklist(cmd, func(ctx context.Context, w *workspace) (*engine.Worklist, error) {
				wl, err := w.eng.UploadDiff(ctx, "")
				if err != nil {
					return nil, err
				}
				down, err := w.eng.DownloadDiff(ctx)
				if err != nil {
					return nil, err
				}
				wl.Merge(down)
				return wl, nil
			})
		},
	}
}

func newCleanCmd(opts *globalOpts) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete remote files that do not exist locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.runWorklist(cmd, func(ctx context.Context, w *workspace) (*engine.Worklist, error) {
				wl, err := w.eng.CleanDiff(ctx)
				if err != nil || wl.Len() == 0 || opts.dryRun || yes {
					return wl, err
				}
				ok, err := confirmDelete(wl)
				if err != nil {
					return nil, err
				}
				if !ok {
					fmt.Fprintln(os.Stderr, "aborted")
					return engine.NewWorklist(), nil
				}
				return wl, nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// confirmDelete shows wl and asks before deleting. Without a terminal it
// refuses; --yes is required instead.
func confirmDelete(wl *engine.Worklist) (bool, error) {
	if !ui.IsTTY(os.Stdin.Fd()) {
		return false, fmt.Errorf("refusing to delete %d remote item(s) without --yes", wl.Len())
	}
	ui.PrintWorklist(os.Stderr, wl)
	fmt.Fprintf(os.Stderr, "delete %d remote item(s)? [y/N] ", wl.Len())
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func newStatusCmd(opts *globalOpts) *cobra.Command {
	var tree bool
	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show what push and pull would do",
		Long: `Show the upload worklist for path and the download worklist for the
whole workspace. With --tree, print the remembered remote tree instead,
without connecting to the server.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tree {
				return opts.printTree(cmd)
			}
			ctx, stop := signalContext()
			defer stop()

			w, err := opts.openWorkspace(ctx, cmd)
			if err != nil {
				return err
			}
			if err := w.eng.Load(ctx); err != nil {
				w.close(false)
				return err
			}
			p, err := pathArg(w, args)
			if err != nil {
				w.close(false)
				return err
			}
			up, err := w.eng.UploadDiff(ctx, p)
			if err != nil {
				w.close(false)
				return err
			}
			down, err := w.eng.DownloadDiff(ctx)
			w.close(false)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "remote %s\n\npush:\n", w.loc)
			ui.PrintWorklist(os.Stdout, up)
			fmt.Fprintln(os.Stdout, "\npull:")
			ui.PrintWorklist(os.Stdout, down)
			return nil
		},
	}
	cmd.Flags().BoolVar(&tree, "tree", false, "print the remembered remote tree without connecting")
	return cmd
}

// printTree loads the snapshot through an offline session and prints it.
func (o *globalOpts) printTree(cmd *cobra.Command) error {
	root, err := o.resolveWorkspace()
	if err != nil {
		return err
	}
	s, err := o.loadSettings(cmd, root)
	if err != nil {
		return err
	}
	loc := s.location()
	eng := engine.New(engine.Config{
		Session: offlineSession{host: loc.Identity(), root: remoteRoot(loc)},
		Local:   transport.NewLocalFS(root),
		Logger:  slog.Default(),
	})
	defer eng.Close()
	if err := eng.Load(cmd.Context()); err != nil {
		return err
	}
	ui.PrintMirror(os.Stdout, eng)
	return nil
}

func newRefreshCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [dir]",
		Short: "Re-list a remote directory and update the remembered tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			w, err := opts.openWorkspace(ctx, cmd)
			if err != nil {
				return err
			}
			defer w.close(false)
			if err := w.eng.Load(ctx); err != nil {
				return err
			}
			p, err := pathArg(w, args)
			if err != nil {
				return err
			}
			if _, err := w.eng.Refresh(ctx, p); err != nil {
				if engine.IsNotFound(err) {
					return fmt.Errorf("%s: no such remote directory", ui.FormatPath(p))
				}
				return err
			}
			slog.Info("refreshed", "dir", ui.FormatPath(p))
			return nil
		},
	}
}

func newVerifyCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [path]",
		Short: "Compare BLAKE3 checksums of local files and their remote copies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			w, err := opts.openWorkspace(ctx, cmd)
			if err != nil {
				return err
			}
			if err := w.eng.Load(ctx); err != nil {
				w.close(false)
				return err
			}
			p, err := pathArg(w, args)
			if err != nil {
				w.close(false)
				return err
			}
			result, err := w.eng.Verify(ctx, p)
			w.close(false)
			if err != nil {
				return err
			}

			if !opts.quiet {
				fmt.Fprintf(os.Stderr, "verified %s file(s), %s mismatched\n",
					ui.FormatCount(result.Verified), ui.FormatCount(result.Failed))
			}
			if result.Failed > 0 {
				for _, ve := range result.Errors {
					if errors.Is(ve.Err, engine.ErrChecksumMismatch) {
						slog.Debug("checksum mismatch", "path", ui.FormatPath(ve.Path),
							"local", ve.LocalHash, "remote", ve.RemoteHash)
					}
				}
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func newLogCmd(opts *globalOpts) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recently applied changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := opts.resolveWorkspace()
			if err != nil {
				return err
			}
			s, err := opts.loadSettings(cmd, root)
			if err != nil {
				return err
			}
			loc := s.location()
			j, err := engine.OpenJournal(loc.Identity(), remoteRoot(loc))
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(limit)
			if err != nil {
				return err
			}
			ui.PrintJournal(os.Stdout, entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/bamsammich/mirrorsync/internal/config"
	"github.com/bamsammich/mirrorsync/internal/engine"
	"github.com/bamsammich/mirrorsync/internal/event"
	"github.com/bamsammich/mirrorsync/internal/filter"
	"github.com/bamsammich/mirrorsync/internal/stats"
	"github.com/bamsammich/mirrorsync/internal/transport"
	"github.com/bamsammich/mirrorsync/internal/ui"
)

// workspace is an opened workspace with a live session and engine.
type workspace struct {
	root      string
	loc       transport.Location
	local     *transport.BillyFS
	eng       *engine.Engine
	collector *stats.Collector
	presenter ui.Presenter

	events       chan event.Event
	presenterWg  sync.WaitGroup
	presenterErr error
	quiet        bool
}

// resolveWorkspace finds the workspace root from --workspace or the
// current directory.
func (o *globalOpts) resolveWorkspace() (string, error) {
	start := o.workspace
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = wd
	}
	return config.FindWorkspace(start)
}

// settings is the merged view of flags, workspace config and user defaults.
type settings struct {
	cfg     config.Config
	ws      config.Workspace
	bwLimit int64
	sshKey  string
	sshPort int
	journal bool
}

func (o *globalOpts) loadSettings(cmd *cobra.Command, root string) (settings, error) {
	ws, err := config.LoadWorkspace(root)
	if err != nil {
		return settings{}, err
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("ignoring unreadable config", "path", config.Path(), "error", err)
		cfg = config.Config{}
	}
	ui.ApplyTheme(cfg.Theme)

	s := settings{cfg: cfg, ws: ws, journal: true}

	bw := ws.Sync.BWLimit
	if cmd.Flags().Changed("bwlimit") {
		bw = o.bwLimitStr
	} else if bw == "" && cfg.Defaults.BWLimit != nil {
		bw = *cfg.Defaults.BWLimit
	}
	if bw != "" {
		n, err := config.ParseSize(bw)
		if err != nil {
			return settings{}, fmt.Errorf("invalid bwlimit: %w", err)
		}
		s.bwLimit = n
	}

	s.sshKey = ws.Remote.KeyFile
	if cmd.Flags().Changed("ssh-key") {
		s.sshKey = o.sshKeyFile
	} else if s.sshKey == "" && cfg.Defaults.SSHKey != nil {
		s.sshKey = *cfg.Defaults.SSHKey
	}

	s.sshPort = ws.Remote.Port
	if cmd.Flags().Changed("ssh-port") {
		s.sshPort = o.sshPort
	} else if s.sshPort == 0 && cfg.Defaults.SSHPort != nil {
		s.sshPort = *cfg.Defaults.SSHPort
	}

	if cfg.Defaults.Journal != nil {
		s.journal = *cfg.Defaults.Journal
	}
	return s, nil
}

func (s settings) location() transport.Location {
	return transport.Location{
		Host: s.ws.Remote.Host,
		User: s.ws.Remote.User,
		Path: s.ws.Remote.Root,
		Port: s.sshPort,
	}
}

// remoteRoot is the root an SFTP session for loc reports.
func remoteRoot(loc transport.Location) string {
	if loc.Path == "" {
		return "/"
	}
	return loc.Path
}

// buildFilter appends the workspace ignore patterns and ignore file to
// chain. Command-line rules already in chain take precedence.
func buildFilter(chain *filter.Chain, root string, sc config.SyncConfig) (*filter.Chain, error) {
	if chain == nil {
		chain = filter.NewChain()
	}
	chain.AddIgnoreLines(sc.Ignore...)
	if sc.IgnoreFile != "" {
		p := sc.IgnoreFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if err := chain.LoadIgnoreFile(p); err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// openWorkspace connects to the remote, opens the journal and starts the
// presenter. The caller must call close.
func (o *globalOpts) openWorkspace(ctx context.Context, cmd *cobra.Command) (*workspace, error) {
	root, err := o.resolveWorkspace()
	if err != nil {
		return nil, err
	}
	s, err := o.loadSettings(cmd, root)
	if err != nil {
		return nil, err
	}
	if o.filterFile != "" {
		if err := o.chain.LoadFile(o.filterFile); err != nil {
			return nil, err
		}
	}
	chain, err := buildFilter(o.chain, root, s.ws.Sync)
	if err != nil {
		return nil, err
	}

	loc := s.location()
	slog.Debug("connecting", "remote", loc.String())
	client, err := transport.DialSSH(ctx, loc.Host, loc.User, transport.SSHOpts{
		KeyFile:         s.sshKey,
		Password:        s.ws.Remote.Password,
		Port:            loc.Port,
		InsecureHostKey: s.ws.Remote.InsecureHostKey,
	})
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if s.bwLimit > 0 {
		limiter = transport.NewBWLimiter(s.bwLimit)
	}
	session, err := transport.NewSFTPSession(client, loc.Identity(), loc.Path, limiter)
	if err != nil {
		client.Close()
		return nil, err
	}

	var journal *engine.Journal
	if s.journal {
		journal, err = engine.OpenJournal(loc.Identity(), session.Root())
		if err != nil {
			slog.Warn("journal unavailable", "error", err)
			journal = nil
		}
	}

	w := &workspace{
		root:      root,
		loc:       loc,
		local:     transport.NewLocalFS(root),
		collector: stats.NewCollector(),
		events:    make(chan event.Event, 256),
		quiet:     o.quiet,
	}
	w.presenter = ui.NewPresenter(ui.Config{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Stats:     w.collector,
		Quiet:     o.quiet,
		Verbose:   o.verbose,
	})

	engCfg := engine.Config{
		Session: session,
		Local:   w.local,
		Logger:  slog.Default(),
		Events:  w.events,
		Stats:   w.collector,
		Journal: journal,
	}
	if !chain.Empty() {
		engCfg.Ignore = chain
	}
	w.eng = engine.New(engCfg)

	presenterEvents := (<-chan event.Event)(w.events)
	if o.logFile != "" {
		presenterEvents = teeEvents(w.events)
	}
	w.presenterWg.Add(1)
	go func() {
		defer w.presenterWg.Done()
		w.presenterErr = w.presenter.Run(presenterEvents)
	}()
	return w, nil
}

// teeEvents logs every event as a structured record before forwarding it.
func teeEvents(events <-chan event.Event) <-chan event.Event {
	teed := make(chan event.Event, 256)
	go func() {
		for ev := range events {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ui.FormatPath(ev.Path)),
				slog.Int64("size", ev.Size),
			}
			if ev.Action != "" {
				attrs = append(attrs, slog.String("action", ev.Action))
			}
			if ev.Error != nil {
				attrs = append(attrs, slog.String("error", ev.Error.Error()))
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "mirrorsync.event", attrs...)
			teed <- ev
		}
		close(teed)
	}()
	return teed
}

// close saves the mirror, stops the presenter and releases the session.
// It prints the completion summary unless summary is false.
func (w *workspace) close(summary bool) {
	if err := w.eng.Save(); err != nil {
		slog.Error("save sync state", "error", err)
	}
	close(w.events)
	w.presenterWg.Wait()
	if w.presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", w.presenterErr)
	}
	if err := w.eng.Close(); err != nil {
		slog.Debug("close session", "error", err)
	}
	if summary && !w.quiet {
		if s := w.presenter.Summary(); s != "" {
			fmt.Fprintln(os.Stderr, s)
		}
	}
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// workspacePath maps a command-line path argument to a workspace path.
// Relative arguments resolve against the current directory.
func workspacePath(root, arg string) (string, error) {
	if arg == "" {
		return "", nil
	}
	abs := arg
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		abs = filepath.Join(wd, arg)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside the workspace %s", arg, root)
	}
	if rel == "." {
		return "", nil
	}
	return "/" + rel, nil
}

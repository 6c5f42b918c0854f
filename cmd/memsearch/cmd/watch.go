package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/memsearch/memsearch/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Watch note directories and keep the index in sync",
		Long: `Run a full sync, then watch the given directories (default: current
directory) and re-index files as they change. Rapid edit bursts are
debounced. Stops on Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = []string{"."}
			}
			return runWatch(cmd, roots)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, roots []string) error {
	ctx := cmd.Context()

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	// One watcher per collection. The lock lives next to the local store
	// so two watch processes never race the same index.
	lock := flock.New(watchLockPath(sess.cfg.ExpandedStoreURI(), sess.cfg.Store.Collection))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire watch lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another memsearch watch is already running for this store")
	}
	defer func() { _ = lock.Unlock() }()

	stats, err := sess.engine.IndexAll(ctx, roots, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initial sync: %d files, %d chunks added\n", stats.Files, stats.Added)

	w, err := watcher.New(watcher.Options{
		Roots:    roots,
		Debounce: time.Duration(sess.cfg.Watch.DebounceMs) * time.Millisecond,
		OnEvent: func(e watcher.Event) {
			var err error
			switch e.Op {
			case watcher.OpRemove:
				_, err = sess.engine.RemoveFile(ctx, e.Path)
			default:
				_, err = sess.engine.IndexFile(ctx, e.Path, false)
			}
			if err != nil {
				slog.Error("failed to sync file",
					slog.String("path", e.Path),
					slog.String("op", e.Op.String()),
					slog.String("error", err.Error()))
				return
			}
			slog.Info("synced file",
				slog.String("path", e.Path),
				slog.String("op", e.Op.String()))
		},
	})
	if err != nil {
		return err
	}
	w.Start(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (Ctrl-C to stop)\n", strings.Join(roots, ", "))
	<-ctx.Done()
	return w.Stop()
}

// watchLockPath picks a lock file location: next to a local store, or under
// the temp dir for remote stores.
func watchLockPath(storeURI, collection string) string {
	if strings.HasPrefix(storeURI, "http://") || strings.HasPrefix(storeURI, "https://") {
		return filepath.Join(os.TempDir(), "memsearch-"+collection+".lock")
	}
	return storeURI + ".lock"
}

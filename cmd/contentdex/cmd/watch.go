package cmd

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/store"
	"github.com/contentdex/contentdex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and keep the index in sync",
		Long: `Watch a directory tree and index new and changed files as they
appear. Deleted files are removed from the index. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runWatch(ctx context.Context, dir string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	w, err := watcher.New(dir, watcher.Options{
		DebounceWindow: a.cfg.Watcher.DebounceWindow,
		Logger:         a.log,
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a.log.Info("watching for changes, press Ctrl-C to stop", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			a.log.Info("stopping watch")
			return a.mgr.CompleteIndexing()
		case batch, ok := <-w.Batches():
			if !ok {
				return nil
			}
			a.applyBatch(batch)
		}
	}
}

// applyBatch indexes created and modified files and removes deleted
// ones. Individual failures are logged; the watch keeps running.
func (a *app) applyBatch(batch []watcher.FileEvent) {
	for _, ev := range batch {
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			props, err := fileProps(ev.Path, indexOptions{}, nil)
			if err != nil {
				a.log.Warn("stat changed file failed", "path", ev.Path, "error", err)
				continue
			}
			if uid, err := a.registry.UIDByPath(ev.Path); err == nil {
				props["uid"] = uid
			}
			doc, err := a.mgr.Index(props, ev.Path)
			if err != nil {
				a.log.Warn("indexing changed file failed", "path", ev.Path, "error", err)
				continue
			}
			if err := a.registry.Record(doc.UID, doc.VID, ev.Path); err != nil {
				a.log.Warn("recording changed file failed", "path", ev.Path, "error", err)
			}
		case watcher.OpDelete:
			uid, err := a.registry.UIDByPath(ev.Path)
			if err != nil {
				if !stderrors.Is(err, store.ErrUnknownUID) {
					a.log.Warn("looking up deleted file failed", "path", ev.Path, "error", err)
				}
				continue
			}
			if err := a.mgr.Delete(uid); err != nil {
				a.log.Warn("removing deleted file failed", "uid", uid, "error", err)
				continue
			}
			if err := a.registry.Forget(uid); err != nil {
				a.log.Warn("forgetting deleted file failed", "uid", uid, "error", err)
			}
		}
	}
}

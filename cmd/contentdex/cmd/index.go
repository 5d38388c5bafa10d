package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	title    string
	mimeType string
	tags     string
	props    []string
	workers  int
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Index files into the repository",
		Long: `Index one or more files. Metadata is committed immediately; file
contents are converted and indexed in the background, and the command
waits for that work to finish before returning.

Examples:
  contentdex index notes.txt
  contentdex index --tags "school essay" report.html
  contentdex index --prop activity=org.laptop.Write journal/*.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "Title (default: file name)")
	cmd.Flags().StringVar(&opts.mimeType, "mime", "", "MIME type (default: detected from extension)")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "Space-separated tags")
	cmd.Flags().StringArrayVar(&opts.props, "prop", nil, "Extra property as key=value (repeatable)")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Concurrent indexing workers")

	return cmd
}

func runIndex(files []string, opts indexOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	extra := make(map[string]string, len(opts.props))
	for _, p := range opts.props {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("invalid property %q, want key=value", p)
		}
		extra[k] = v
	}

	var mu sync.Mutex
	indexed := 0

	var g errgroup.Group
	g.SetLimit(opts.workers)
	for _, file := range files {
		g.Go(func() error {
			props, err := fileProps(file, opts, extra)
			if err != nil {
				return err
			}
			doc, err := a.mgr.Index(props, file)
			if err != nil {
				return fmt.Errorf("index %s: %w", file, err)
			}
			if err := a.registry.Record(doc.UID, doc.VID, file); err != nil {
				return err
			}
			a.log.Info("indexed", "file", file, "uid", doc.UID, "vid", doc.VID)
			mu.Lock()
			indexed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := a.mgr.CompleteIndexing(); err != nil {
		return err
	}
	fmt.Printf("indexed %d file(s)\n", indexed)
	return nil
}

// fileProps derives the metadata properties for one file.
func fileProps(path string, opts indexOptions, extra map[string]string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	props := map[string]string{
		"filename":  filepath.Base(path),
		"title":     opts.title,
		"mime_type": opts.mimeType,
		"timestamp": fmt.Sprintf("%d", info.ModTime().Unix()),
		"mtime":     fmt.Sprintf("%d", info.ModTime().Unix()),
	}
	if props["title"] == "" {
		props["title"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if props["mime_type"] == "" {
		props["mime_type"] = detectMime(path)
	}
	if opts.tags != "" {
		props["tags"] = opts.tags
	}
	for k, v := range extra {
		props[k] = v
	}
	return props, nil
}

func detectMime(path string) string {
	if m := mime.TypeByExtension(filepath.Ext(path)); m != "" {
		return m
	}
	return "text/plain"
}

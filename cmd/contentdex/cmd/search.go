package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/model"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	offset  int
	orderBy string
	format  string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the indexed content",
		Long: `Search with the web-style query grammar: plain terms, field:term
qualifiers, "quoted phrases", trailing * wildcards and -excluded terms.
An empty query matches everything.

Examples:
  contentdex search garden
  contentdex search 'title:"field trip" -draft'
  contentdex search 'mime_type:text/plain' --order -timestamp`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Result offset for paging")
	cmd.Flags().StringVar(&opts.orderBy, "order", "", "Sort field, prefix with - for descending (e.g. -timestamp)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")

	return cmd
}

func runSearch(queryText string, opts searchOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	var q any
	if strings.TrimSpace(queryText) != "" {
		q = queryText
	}

	res, total, err := a.mgr.Search(q, opts.offset, opts.offset+opts.limit, opts.orderBy)
	if err != nil {
		return err
	}
	docs, err := res.All()
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return printSearchJSON(docs, total)
	}

	fmt.Printf("%d result(s), ~%d total\n", len(docs), total)
	for _, doc := range docs {
		title, _ := doc.FieldValue("title")
		fmt.Printf("  %s (v%d)  %v\n", doc.UID, doc.VID, title)
		if tags := doc.Tags(); len(tags) > 0 {
			fmt.Printf("    tags: %s\n", strings.Join(tags, " "))
		}
	}
	return nil
}

type searchResult struct {
	UID    string            `json:"uid"`
	VID    int64             `json:"vid"`
	Fields map[string]string `json:"fields"`
	Tags   []string          `json:"tags,omitempty"`
}

func printSearchJSON(docs []*model.Document, total uint64) error {
	out := struct {
		Total   uint64         `json:"estimated_total"`
		Results []searchResult `json:"results"`
	}{Total: total}

	for _, doc := range docs {
		out.Results = append(out.Results, toResult(doc))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toResult(doc *model.Document) searchResult {
	r := searchResult{
		UID:    doc.UID,
		VID:    doc.VID,
		Fields: make(map[string]string),
		Tags:   doc.Tags(),
	}
	for _, f := range doc.Fields {
		if f.Key == "fulltext" {
			continue
		}
		r.Fields[f.Key] = fmt.Sprintf("%v", f.Value)
	}
	return r
}

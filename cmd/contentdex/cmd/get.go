package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var rev string

	cmd := &cobra.Command{
		Use:   "get <uid>",
		Short: "Show one indexed entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(args[0], rev)
		},
	}

	cmd.Flags().StringVar(&rev, "rev", "tip", `Version to fetch: a version id or "tip"`)
	return cmd
}

func runGet(uid, rev string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	doc, err := a.mgr.GetVersion(uid, rev)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(toResult(doc))
}

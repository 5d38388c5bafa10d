package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <uid>",
		Short: "List every indexed version of an entry, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(args[0])
		},
	}
}

func runVersions(uid string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	res, _, err := a.mgr.GetByUID(uid, "")
	if err != nil {
		return err
	}
	docs, err := res.All()
	if err != nil {
		return err
	}

	for _, doc := range docs {
		title, _ := doc.FieldValue("title")
		fmt.Printf("v%-4d %v\n", doc.VID, title)
	}
	return nil
}

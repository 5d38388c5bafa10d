package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <uid> <tags>...",
		Short: "Update the tags of an entry",
		Long: `Update tags across every version of an entry. A plain token adds a
tag, a leading - removes one, and a bare - clears the whole set.

Examples:
  contentdex tag 3f2a art school
  contentdex tag 3f2a -school
  contentdex tag 3f2a - fresh-start`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(args[0], strings.Join(args[1:], " "))
		},
	}
	return cmd
}

func runTag(uid, expr string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	tags, err := a.mgr.UpdateTags(uid, expr)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Printf("%s: no tags\n", uid)
		return nil
	}
	fmt.Printf("%s: %s\n", uid, strings.Join(tags, " "))
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <uid>...",
		Short: "Remove entries from the index",
		Long: `Remove every version of the given uids from the index, synchronously.
The registry records are removed as well.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(args)
		},
	}
	return cmd
}

func runDelete(uids []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	for _, uid := range uids {
		if err := a.mgr.Delete(uid); err != nil {
			return err
		}
		if err := a.registry.Forget(uid); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", uid)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTermsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terms <field>",
		Short: "List every distinct value of a field",
		Long: `Enumerate the distinct indexed values of one field, useful for tag
clouds and activity lists.

Examples:
  contentdex terms tags
  contentdex terms activity`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTerms(args[0])
		},
	}
	return cmd
}

func runTerms(field string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	values, err := a.mgr.UniqueValues(field)
	if err != nil {
		return err
	}
	for _, v := range values {
		fmt.Println(v)
	}
	return nil
}

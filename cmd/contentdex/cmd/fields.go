package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the registered metadata fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields()
		},
	}
}

func runFields() error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close(false)

	schema := a.mgr.Schema()
	fmt.Printf("schema generation %d, %d fields\n", schema.Generation(), schema.Len())
	for _, key := range schema.Keys() {
		desc, _ := schema.Get(key)
		attrs := ""
		if desc.Exact {
			attrs += " exact"
		}
		if desc.Sortable {
			attrs += " sortable"
		}
		if desc.Store {
			attrs += " stored"
		}
		if desc.Collapse {
			attrs += " collapse"
		}
		fmt.Printf("  %-14s %-8s%s\n", desc.Key, string(desc.Kind), attrs)
	}
	return nil
}

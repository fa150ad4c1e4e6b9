package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewTemplatesCmd creates the templates command group.
func NewTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage prompt templates",
	}
	cmd.AddCommand(newTemplatesExportCmd())
	cmd.AddCommand(newTemplatesImportCmd())
	return cmd
}

func newTemplatesExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all prompt templates as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := st.ExportTemplates()
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Println(string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Printf("templates exported to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (stdout when omitted)")
	return cmd
}

func newTemplatesImportCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import prompt templates from a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			imported, err := st.ImportTemplates(data, overwrite)
			if err != nil {
				return err
			}
			fmt.Printf("%d templates imported\n", imported)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace templates that already exist")
	return cmd
}

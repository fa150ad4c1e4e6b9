package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"redraft/internal/core"
	"redraft/internal/store"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var (
		status       string
		creationType string
		category     string
		page         int
		perPage      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			articles, total, err := st.ListArticles(store.ArticleFilter{
				Status:       core.Status(status),
				CreationType: core.CreationType(creationType),
				Category:     category,
				Page:         page,
				PerPage:      perPage,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tAI%\tTITLE")
			for _, a := range articles {
				prob := "-"
				if a.AIProbability != nil {
					prob = fmt.Sprintf("%.0f", *a.AIProbability)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Status, a.CreationType, prob, a.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d of %d articles\n", len(articles), total)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&creationType, "type", "", "filter by creation type: url_import, topic_creation")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "articles per page")

	return cmd
}

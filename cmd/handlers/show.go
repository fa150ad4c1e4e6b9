package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command.
func NewShowCmd() *cobra.Command {
	var content bool

	cmd := &cobra.Command{
		Use:   "show <article-id>",
		Short: "Show one article and its detection history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid article id %q", args[0])
			}

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			article, err := st.GetArticle(id)
			if err != nil {
				return err
			}

			fmt.Printf("Article %d: %s\n", article.ID, article.Title)
			fmt.Printf("  status:   %s\n", article.Status)
			fmt.Printf("  type:     %s\n", article.CreationType)
			if article.SourceURL != "" {
				fmt.Printf("  source:   %s\n", article.SourceURL)
			}
			if article.Topic != "" {
				fmt.Printf("  topic:    %s\n", article.Topic)
			}
			if article.AIProbability != nil {
				fmt.Printf("  AI prob:  %.0f%%\n", *article.AIProbability)
			}
			if article.LastError != "" {
				fmt.Printf("  error:    %s\n", article.LastError)
			}
			if article.PublishedAt != nil {
				fmt.Printf("  published: %s\n", article.PublishedAt.Format("2006-01-02 15:04"))
			}

			detections, err := st.ListDetections(id)
			if err != nil {
				return err
			}
			if len(detections) > 0 {
				fmt.Println("Detections:")
				for _, d := range detections {
					verdict := "fail"
					if d.Passed {
						verdict = "pass"
					}
					fmt.Printf("  %s  %s  %.0f%%  %s (profile %d, %d attempts)\n",
						d.DetectedAt.Format("2006-01-02 15:04"), d.Platform, d.Score, verdict,
						d.ProfileID, d.Attempts)
				}
			}

			if content {
				fmt.Println("\n--- content ---")
				fmt.Println(article.BestContent())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&content, "content", false, "print the article body")

	return cmd
}

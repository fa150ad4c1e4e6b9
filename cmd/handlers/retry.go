package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"redraft/internal/pipeline"
)

// NewRetryCmd creates the retry command for reprocessing failed articles.
func NewRetryCmd() *cobra.Command {
	var autoPublish bool

	cmd := &cobra.Command{
		Use:   "retry <article-id>",
		Short: "Reprocess a failed article",
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

			p, err := buildPipeline(cmd.Context(), st)
			if err != nil {
				return err
			}

			taskID, err := p.Process(id, pipeline.Options{AutoPublish: autoPublish})
			if err != nil {
				return err
			}
			fmt.Printf("article %d reprocessing (task %s)\n", id, taskID)

			p.Wait()
			return reportOutcomes(st, []int64{id})
		},
	}

	cmd.Flags().BoolVar(&autoPublish, "auto-publish", false, "publish automatically when the article passes")

	return cmd
}

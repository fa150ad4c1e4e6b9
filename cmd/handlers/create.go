package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"redraft/internal/core"
	"redraft/internal/pipeline"
)

// NewCreateCmd creates the create command for topic-based article creation.
func NewCreateCmd() *cobra.Command {
	var (
		title        string
		length       string
		style        string
		keywords     []string
		requirements string
		category     string
		autoPublish  bool
	)

	cmd := &cobra.Command{
		Use:   "create <topic>",
		Short: "Write an original article from a topic brief",
		Long: `Commission an original article on a topic. The draft goes through the
same detect-optimise loop as imported articles.

Examples:
  # Create a medium-length article
  redraft create "国产数据库的发展现状"

  # Control length, style and keywords
  redraft create "AI编程助手实测" --length long --style 轻松幽默 --keyword Copilot --keyword Cursor`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := buildPipeline(cmd.Context(), st)
			if err != nil {
				return err
			}

			id, err := p.CreateTopic(pipeline.TopicSpec{
				Topic:        args[0],
				Title:        title,
				TargetLength: core.TargetLength(length),
				WritingStyle: style,
				Keywords:     keywords,
				Requirements: requirements,
				Category:     category,
			})
			if err != nil {
				return err
			}

			taskID, err := p.Process(id, pipeline.Options{AutoPublish: autoPublish})
			if err != nil {
				return err
			}
			fmt.Printf("article %d processing (task %s)\n", id, taskID)

			p.Wait()
			return reportOutcomes(st, []int64{id})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "article title (defaults to the topic)")
	cmd.Flags().StringVar(&length, "length", "medium", "target length: mini, short, medium, long")
	cmd.Flags().StringVar(&style, "style", "", "writing style hint for the draft")
	cmd.Flags().StringArrayVar(&keywords, "keyword", nil, "keyword to weave in (repeatable)")
	cmd.Flags().StringVar(&requirements, "requirements", "", "extra creation requirements")
	cmd.Flags().StringVar(&category, "category", "", "article category")
	cmd.Flags().BoolVar(&autoPublish, "auto-publish", false, "publish automatically when the article passes")

	return cmd
}

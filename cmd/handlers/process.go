package handlers

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"redraft/internal/core"
	"redraft/internal/pipeline"
)

// NewProcessCmd creates the process command for importing source URLs.
func NewProcessCmd() *cobra.Command {
	var (
		file        string
		platform    string
		length      string
		autoPublish bool
	)

	cmd := &cobra.Command{
		Use:   "process [url]",
		Short: "Import one or more source URLs and run the full pipeline",
		Long: `Import source articles by URL and run them through extraction,
translation and the detect-optimise loop.

Examples:
  # Process a single article
  redraft process https://example.com/some-article

  # Process a batch file with one URL per line
  redraft process --file urls.txt

  # Process and publish automatically when the article passes
  redraft process https://example.com/some-article --auto-publish`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := collectURLs(args, file)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs given: pass a URL or --file")
			}
			return runProcess(cmd, urls, platform, core.TargetLength(length), autoPublish)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "batch file with one URL per line")
	cmd.Flags().StringVar(&platform, "platform", "", "source platform label")
	cmd.Flags().StringVar(&length, "length", "", "target length: mini, short, medium, long")
	cmd.Flags().BoolVar(&autoPublish, "auto-publish", false, "publish automatically when the article passes")

	return cmd
}

func collectURLs(args []string, file string) ([]string, error) {
	var urls []string
	urls = append(urls, args...)

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("open batch file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read batch file: %w", err)
		}
	}
	return urls, nil
}

func runProcess(cmd *cobra.Command, urls []string, platform string, length core.TargetLength, autoPublish bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	p, err := buildPipeline(cmd.Context(), st)
	if err != nil {
		return err
	}

	var articleIDs []int64
	for _, url := range urls {
		id, err := p.ImportURL(url, platform, length)
		if err != nil {
			if core.KindOf(err) == core.KindDuplicateKey {
				fmt.Fprintf(os.Stderr, "skipping %s: already imported\n", url)
				continue
			}
			return err
		}
		fmt.Printf("article %d: %s\n", id, url)
		articleIDs = append(articleIDs, id)
	}
	if len(articleIDs) == 0 {
		return nil
	}

	tasks, failures := p.ProcessMany(articleIDs, pipeline.Options{AutoPublish: autoPublish})
	for id, err := range failures {
		fmt.Fprintf(os.Stderr, "article %d failed to start: %v\n", id, err)
	}
	for id, taskID := range tasks {
		fmt.Printf("article %d processing (task %s)\n", id, taskID)
	}

	p.Wait()
	return reportOutcomes(st, articleIDs)
}

// reportOutcomes prints the final state of each processed article.
func reportOutcomes(st storeReader, articleIDs []int64) error {
	failed := 0
	for _, id := range articleIDs {
		article, err := st.GetArticle(id)
		if err != nil {
			return err
		}
		switch article.Status {
		case core.StatusReady:
			prob := "n/a"
			if article.AIProbability != nil {
				prob = fmt.Sprintf("%.0f%%", *article.AIProbability)
			}
			fmt.Printf("article %d ready (AI probability %s)\n", id, prob)
		case core.StatusFailed:
			failed++
			fmt.Fprintf(os.Stderr, "article %d failed: %s\n", id, article.LastError)
		default:
			fmt.Printf("article %d is %s\n", id, article.Status)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed", failed, len(articleIDs))
	}
	return nil
}

type storeReader interface {
	GetArticle(id int64) (*core.Article, error)
}

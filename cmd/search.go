package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Maintain the directory search index",
}

var searchReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Elasticsearch index from the database",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, err := newCommandApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.index == nil {
			return errors.New("ELASTICSEARCH_ADDRESSES is not configured")
		}
		if err := app.index.EnsureIndex(ctx); err != nil {
			return err
		}

		count, err := app.directory.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("reindex stopped after %d account(s): %w", count, err)
		}
		fmt.Printf("indexed %d account(s)\n", count)
		return nil
	},
}

func init() {
	searchCmd.AddCommand(searchReindexCmd)
	rootCmd.AddCommand(searchCmd)
}

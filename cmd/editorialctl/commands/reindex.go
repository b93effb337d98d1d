package commands

import (
	"context"
	"fmt"

	"editorial/api/internal/bootstrap"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from published content",
	Long: `Push every published version into the search index. Use after restoring
a database or when the index has drifted from the published state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Close()

		stack, err := bootstrap.Build(context.Background(), cfg, logger.Logger, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer stack.Close()

		count, err := stack.Service.ReindexSearch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d published records\n", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

package main

import (
	"fmt"
	"time"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/di/providers"
	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the store",
		Long: `reindex drops every document and indexes all rocks again. It runs even
when search is disabled in the configuration. Stop the server first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			injector, err := opts.container(cmd, true)
			if err != nil {
				return err
			}
			defer shutdown(injector, cmd.ErrOrStderr())

			storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
			indexHandle, err := do.Invoke[*providers.SearchIndexHandle](injector)
			if err != nil {
				return fmt.Errorf("open search index: %w", err)
			}

			start := time.Now()
			rocks, err := storeHandle.ListRocks(cmd.Context(), domain.RockFilter{})
			if err != nil {
				return fmt.Errorf("list rocks: %w", err)
			}
			if err := indexHandle.Rebuild(); err != nil {
				return fmt.Errorf("clear index: %w", err)
			}
			if err := indexHandle.IndexRocks(cmd.Context(), rocks); err != nil {
				return fmt.Errorf("index rocks: %w", err)
			}

			count, err := indexHandle.DocumentCount()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d rocks in %s\n", count, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autama/autama/backend/internal/dataset"
)

// datasetCmd represents the dataset command
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage the PersonaChat corpus",
}

// datasetFetchCmd represents the dataset fetch command
var datasetFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the corpus into the local cache",
	Long: `Download PersonaChat (or read --dataset) and store it at
nucleus.dataset_cache so later runs start without network access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ds, err := dataset.Load(cmd.Context(), dataset.Options{
			Path:      cfg.Nucleus.DatasetPath,
			CachePath: cfg.Nucleus.DatasetCache,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d dialogs, %d personalities cached at %s\n",
			ds.Len(), len(ds.Personalities()), cfg.Nucleus.DatasetCache)
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetFetchCmd)
	rootCmd.AddCommand(datasetCmd)
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autama/autama/backend/internal/nucleus"
	"github.com/autama/autama/backend/internal/service/engine"
)

// trainCmd represents the train command
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit the local model and write its checkpoint",
	Long: `Fit the local n-gram model on the configured dataset and overwrite the
checkpoint at nucleus.model_checkpoint. The API server loads this
checkpoint instead of training at start-up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Nucleus.ModelCheckpoint == "" {
			return errors.New("no checkpoint path configured, set --checkpoint or nucleus.model_checkpoint")
		}

		ds, err := engine.LoadDataset(cmd.Context(), cfg.Nucleus)
		if err != nil {
			return err
		}
		tok, ngram, err := engine.Train(ds, cfg.Nucleus.VocabSize)
		if err != nil {
			return err
		}
		if err := nucleus.SaveCheckpoint(cfg.Nucleus.ModelCheckpoint, tok, ngram); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (vocab=%d, dialogs=%d)\n", cfg.Nucleus.ModelCheckpoint, tok.VocabSize(), ds.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

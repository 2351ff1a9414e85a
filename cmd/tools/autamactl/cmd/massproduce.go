package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	produceAmount  int
	produceCreator string
)

// massProduceCmd represents the massproduce command
var massProduceCmd = &cobra.Command{
	Use:   "massproduce",
	Short: "Generate and store new Autamas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		amount := a.Config.Bacon.Amount
		if cmd.Flags().Changed("amount") {
			amount = produceAmount
		}

		created, err := a.Autamas.MassProduce(cmd.Context(), amount, produceCreator)
		for _, p := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.ID, p.Name, strings.Join(p.Traits, " "))
		}
		return err
	},
}

func init() {
	massProduceCmd.Flags().IntVarP(&produceAmount, "amount", "n", 0, "number of Autamas to create (default from bacon.amount)")
	massProduceCmd.Flags().StringVar(&produceCreator, "creator", "system", "creator recorded on the new Autamas")
	rootCmd.AddCommand(massProduceCmd)
}

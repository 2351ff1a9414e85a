package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// personasCmd represents the personas command
var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List stored Autamas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		personas, err := a.Personas.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range personas {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Creator, strings.Join(p.Traits, " "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}

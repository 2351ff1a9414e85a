package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	userPassword string
	userStaff    bool
)

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

// usersCreateCmd represents the users create command
var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Accounts.Register(cmd.Context(), args[0], userPassword, userStaff)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (id=%s, staff=%v)\n", u.Username, u.ID, u.IsStaff)
		return nil
	},
}

// usersListCmd represents the users list command
var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Accounts.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tstaff=%v\n", u.ID, u.Username, u.IsStaff)
		}
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "account password")
	usersCreateCmd.Flags().BoolVar(&userStaff, "staff", false, "grant staff permissions")
	usersCreateCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(usersCreateCmd, usersListCmd)
	rootCmd.AddCommand(usersCmd)
}

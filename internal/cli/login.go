package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/credential"
)

var loginCmd = &cobra.Command{
	Use:   "login <token>",
	Short: "Store a session token in the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := credential.IdentityFromToken(args[0])
		if err != nil {
			return err
		}
		if err := credential.Set(credential.SessionTokenKey, id.Token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", id.UserID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := credential.Delete(credential.SessionTokenKey); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

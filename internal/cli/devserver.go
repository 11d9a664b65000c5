package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/devserver"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run an in-memory backend for local development",
	Long: `devserver serves the REST endpoints, the notification WebSocket and a /dev
API for seeding messages and notifications. State lives in memory only.`,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().String("addr", "127.0.0.1:5000", "Listen address")
	devserverCmd.Flags().String("secret", "dev-secret", "HMAC secret for session tokens")
	devserverCmd.Flags().String("user", "", "Print a session token for this user id on startup")
}

func runDevserver(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	secret, _ := cmd.Flags().GetString("secret")
	user, _ := cmd.Flags().GetString("user")

	srv, err := devserver.New(devserver.Config{Secret: []byte(secret), Logger: newLogger()})
	if err != nil {
		return err
	}

	if user != "" {
		token, err := srv.IssueToken(user)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "token for %s:\n%s\n", user, token)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "listening on http://%s\n", addr)
	return srv.Run(ctx, addr)
}

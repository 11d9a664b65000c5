package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/realtime"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Fetch and print the notification feed",
	RunE:  runFeed,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and print the feed whenever it changes",
	RunE:  runWatch,
}

var readCmd = &cobra.Command{
	Use:       "read <message|notification> <id>",
	Short:     "Mark one item read",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(model.SourceKindMessage), string(model.SourceKindSystemNotification)},
	RunE:      runRead,
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every system notification read",
	RunE:  runReadAll,
}

func init() {
	feedCmd.Flags().Bool("offline", false, "Render from the local cache without fetching")
}

func runFeed(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if offline, _ := cmd.Flags().GetBool("offline"); !offline {
		if err := e.session.Refresh(ctx); err != nil {
			return err
		}
	}

	f, err := e.session.Feed(ctx)
	if err != nil {
		return err
	}
	renderFeed(cmd.OutOrStdout(), f, time.Now())
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	e.session.Connection().OnStateChange(func(c realtime.StateChange) { renderState(out, c) })
	e.session.Connection().OnEvent(func(ev realtime.Event) { renderEvent(out, ev) })

	if err := e.session.Start(); err != nil {
		return err
	}

	results := e.session.Poller().Results()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-results:
			if res.AuthExpired {
				return fmt.Errorf("session expired, run `notifyctl login <token>` again")
			}
			if res.Error != nil {
				continue
			}
			f, err := e.session.Feed(ctx)
			if err != nil {
				return err
			}
			renderFeed(out, f, time.Now())
		}
	}
}

func runRead(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	kind := model.SourceKind(args[0])
	if err := e.session.Commands().MarkRead(cmd.Context(), kind, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "marked %s %s read\n", kind, args[1])
	return nil
}

func runReadAll(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.session.Commands().MarkAllRead(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all notifications marked read")
	return nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/model"
	"github.com/nhle/notifycore/internal/push"
	"github.com/nhle/notifycore/internal/theme"
	"github.com/nhle/notifycore/internal/ui"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Manage this device's push registration",
}

var pushStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show permission and cached subscription state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		st, err := e.session.Push().Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.HeaderStyle.Render("Push"))
		fmt.Fprintf(out, "  platform    %s\n", st.Platform)
		fmt.Fprintf(out, "  permission  %s\n", st.Permission)
		fmt.Fprintf(out, "  subscribed  %t\n", st.Cache.Subscribed)
		fmt.Fprintf(out, "  dismissed   %t\n", st.Cache.Dismissed)
		if st.Cache.KeyFingerprint != "" {
			fmt.Fprintf(out, "  key         %s\n", st.Cache.KeyFingerprint)
		}
		if st.DeviceID != "" {
			fmt.Fprintf(out, "  device      %s\n", st.DeviceID)
		}
		return nil
	},
}

var pushReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare the local push state with the server and repair it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		d, err := e.session.Push().Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", d.Action, d.Reason)
		if d.Action != push.PromptEnrollment {
			return nil
		}
		if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
			fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("run `notifyctl push enroll` to turn on notifications, or `notifyctl push dismiss`"))
			return nil
		}

		var accepted bool
		if err := ui.NewEnrollForm(&accepted).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if !accepted {
			return e.session.Push().Dismiss(cmd.Context())
		}
		return enroll(cmd, e)
	},
}

var pushEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Grant notification permission and register this device",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return enroll(cmd, e)
	},
}

// enroll runs the accept path of the enrollment prompt and records the
// granted permission in the config.
func enroll(cmd *cobra.Command, e *env) error {
	err := e.session.Push().Enroll(cmd.Context())
	if errors.Is(err, push.ErrPermissionDenied) {
		fmt.Fprintln(cmd.OutOrStdout(), "permission denied, enrollment dismissed")
		return nil
	}
	if err != nil {
		return err
	}

	if e.cfg.Push.Permission != string(model.PermissionGranted) {
		e.cfg.Push.Permission = string(model.PermissionGranted)
		if err := model.SaveConfig(configPath, e.cfg); err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "push notifications enabled")
	return nil
}

var pushDismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Stop suggesting push enrollment on this device",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		return e.session.Push().Dismiss(cmd.Context())
	},
}

var pushUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove this device's push registration from the server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		removed, err := e.session.Push().Unregister(cmd.Context())
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintln(cmd.OutOrStdout(), "unregistered")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "no registration found on the server")
		}
		return nil
	},
}

func init() {
	pushReconcileCmd.Flags().Bool("no-prompt", false, "Print the decision without asking to enroll")
	pushCmd.AddCommand(pushStatusCmd, pushReconcileCmd, pushEnrollCmd, pushDismissCmd, pushUnregisterCmd)
}

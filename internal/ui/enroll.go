package ui

import "github.com/charmbracelet/huh"

// NewEnrollForm builds the enrollment prompt shown when push
// reconciliation asks for it. accepted receives the answer.
func NewEnrollForm(accepted *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Turn on notifications for this device?").
				Description("You will be notified about messages, bids and orders even when notifyctl is closed.").
				Affirmative("Enable").
				Negative("Not now").
				Value(accepted),
		),
	)
}

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/notifycore/internal/ui"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Open the interactive notification inbox",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		s := e.session
		m := ui.New(ui.Deps{
			Feed:       s,
			Commands:   s.Commands(),
			Poller:     s.Poller(),
			Connection: s.Connection(),
			Push:       s.Push(),
			Reconnect:  s.Reconnect,
		})
		if err := s.Start(); err != nil {
			return err
		}

		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}

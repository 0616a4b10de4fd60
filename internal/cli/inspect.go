package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/openhydro/sewerflow/pkg/network"
	"github.com/openhydro/sewerflow/pkg/provider"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <network.json>",
		Short: "Browse segments, depths and node roles interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			file, err := provider.LoadFile(args[0])
			if err != nil {
				return err
			}
			topo := network.Build(file.Segments, cfg.Network.Tolerance)
			if topo.SegmentCount() == 0 {
				printInfo("Network is empty")
				return nil
			}

			model := NewSegmentListModel(topo)
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}

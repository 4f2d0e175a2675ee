package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/ui"
)

var peersCmd = &cobra.Command{
	Use:     "peers",
	Aliases: []string{"ls"},
	Short:   "List the peers connected to the relay",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{})
		if err != nil {
			return err
		}

		conn, err := connect(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		items := make([]ui.PeerTableItem, len(conn.peers))
		for i, p := range conn.peers {
			items[i] = ui.PeerTableItem{Name: p.DeviceName, ID: p.ID}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.IdentityView(conn.self.DeviceName, conn.self.ID))
		fmt.Fprintln(out, ui.PeerTableView(items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(peersCmd)
}

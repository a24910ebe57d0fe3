// Package chrysaliscmder
package chrysaliscmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/config"
	getcmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/get"
	recallcmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/recall"
	remembercmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/remember"
	servecmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/serve"
	statuscmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/status"
	synccmder "github.com/chrysalislabs/chrysalis/cmd/chrysalis/sync"
	versioncmder "github.com/chrysalislabs/chrysalis/cmd/version"
)

const chrysalisLongDesc string = `Chrysalis is a local-first replicated memory store for autonomous agents.

Every replica owns a full copy of its memories and keeps working offline;
CRDT merges reconcile replicas whenever a sync gateway is reachable.

Common commands:
  chrysalis remember   Store a new memory
  chrysalis recall     Retrieve memories relevant to a query
  chrysalis serve      Run the replica API server with background sync`

const chrysalisShortDesc string = "Chrysalis - replicated agent memory"

func NewChrysalisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chrysalis",
		Short: chrysalisShortDesc,
		Long:  chrysalisLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Path to the .chrysalis config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(getcmder.NewGetCmd())
	cmd.AddCommand(synccmder.NewSyncCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

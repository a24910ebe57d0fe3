// Package statuscmder provides the status command summarizing the replica.
package statuscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	agentutils "github.com/chrysalislabs/chrysalis/pkg/agent/utils"
	"github.com/chrysalislabs/chrysalis/pkg/cliui"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
	"github.com/chrysalislabs/chrysalis/pkg/logger"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

type statusCommander struct {
	debug     bool
	configDir string
	logger    *zap.Logger
}

const statusLongDesc string = `Show the state of this replica.

Prints the resolved configuration directory, the storage backend, the
memory counts per type, and whether sync is configured.`

const statusShortDesc string = "Show replica status"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run()
		},
	}

	return cmd
}

func (c *statusCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	mem, closeStack, err := agentutils.NewAgentMemory(ctx, &agentutils.NewAgentMemoryOpts{
		Config:    cfg,
		ConfigDir: dir,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer closeStack()

	stats, err := mem.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	printRow("Config dir", dir)
	printRow("Instance", cfg.Instance.ID)
	printRow("Storage", cfg.Storage.Provider)
	printRow("Memories", fmt.Sprintf("%d", stats.Total))

	for _, typ := range []memory.Type{memory.TypeEpisodic, memory.TypeSemantic, memory.TypeProcedural, memory.TypeWorking} {
		if n := stats.ByType[typ]; n > 0 {
			printRow("  "+string(typ), fmt.Sprintf("%d", n))
		}
	}
	if n := stats.ByStatus[memory.StatusPending]; n > 0 {
		printRow("Pending sync", fmt.Sprintf("%d", n))
	}

	if cfg.Sync.Enabled {
		printRow("Sync", fmt.Sprintf("enabled (%s, every %ds)", cfg.Sync.GatewayURL, cfg.Sync.IntervalSeconds))
	} else {
		printRow("Sync", "disabled")
	}
	fmt.Println()

	return nil
}

func printRow(key, value string) {
	fmt.Printf("  %s  %s\n",
		cliui.KeyStyle.Render(fmt.Sprintf("%-14s", key)),
		cliui.ValueStyle.Render(value),
	)
}

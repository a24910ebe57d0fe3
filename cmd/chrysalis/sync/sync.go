// Package synccmder provides the sync command for one-shot reconciliation.
package synccmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	agentutils "github.com/chrysalislabs/chrysalis/pkg/agent/utils"
	"github.com/chrysalislabs/chrysalis/pkg/cliui"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
	"github.com/chrysalislabs/chrysalis/pkg/logger"
)

type syncCommander struct {
	pull      bool
	query     string
	k         int
	debug     bool
	configDir string
	logger    *zap.Logger
}

const syncLongDesc string = `Run one reconciliation cycle against the gateway.

Pushes every pending memory and, with --pull, merges remote memories
back into the local replica. Both directions are CRDT merges, so
repeating a cycle is always safe.

Examples:
  chrysalis sync
  chrysalis sync --pull --query "deploy" -k 20`

const syncShortDesc string = "Reconcile this replica with the gateway"

func NewSyncCmd() *cobra.Command {
	cmder := &syncCommander{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: syncShortDesc,
		Long:  syncLongDesc,
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

	cmd.Flags().BoolVar(&cmder.pull, "pull", false, "Also pull remote memories after pushing")
	cmd.Flags().StringVar(&cmder.query, "query", "", "Pull query (empty asks the gateway for relevant memories)")
	cmd.Flags().IntVarP(&cmder.k, "top-k", "k", 50, "Maximum memories to pull")

	return cmd
}

func (c *syncCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	cfg := config.FromViper(v)

	// A one-shot sync is explicit intent; the enabled flag only gates the
	// background loop.
	if cfg.Sync.GatewayURL == "" {
		return fmt.Errorf("sync.gateway_url is not configured")
	}
	cfg.Sync.Enabled = true

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

	var pushed int
	err = cliui.Step(os.Stdout, "Pushing pending memories", func() error {
		var stepErr error
		pushed, stepErr = mem.SyncNow(ctx)
		return stepErr
	})
	if err != nil {
		return err
	}
	fmt.Printf("  %s\n", cliui.DimStyle.Render(fmt.Sprintf("pushed %d", pushed)))

	if c.pull {
		var merged int
		err = cliui.Step(os.Stdout, "Pulling remote memories", func() error {
			var stepErr error
			merged, stepErr = mem.Pull(ctx, c.query, c.k)
			return stepErr
		})
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", cliui.DimStyle.Render(fmt.Sprintf("merged %d", merged)))
	}

	c.logger.Debug("sync cycle complete", zap.Int("pushed", pushed))
	return nil
}

// Package getcmder provides the get command for inspecting one memory.
package getcmder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	agentutils "github.com/chrysalislabs/chrysalis/pkg/agent/utils"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
	"github.com/chrysalislabs/chrysalis/pkg/logger"
)

type getCommander struct {
	access    bool
	debug     bool
	configDir string
	logger    *zap.Logger
}

const getLongDesc string = `Print one memory document as JSON.

The full CRDT state is shown, including tags, counters, and the vector
clock, which is useful when debugging replica divergence.

Examples:
  chrysalis get 2f1c9a7e-4b9d-4f6e-9a3c-8d2f6c1b5e4a
  chrysalis get 2f1c9a7e-4b9d-4f6e-9a3c-8d2f6c1b5e4a --access`

const getShortDesc string = "Print one memory document"

func NewGetCmd() *cobra.Command {
	cmder := &getCommander{}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.access, "access", false, "Record an access on the memory")

	return cmd
}

func (c *getCommander) run(id string) error {
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

	doc, err := mem.Get(ctx, id)
	if err != nil {
		return err
	}

	if c.access {
		doc, err = mem.RecordAccess(ctx, id)
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))
	return nil
}

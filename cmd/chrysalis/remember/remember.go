// Package remembercmder provides the remember command for storing memories.
package remembercmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/agent"
	agentutils "github.com/chrysalislabs/chrysalis/pkg/agent/utils"
	"github.com/chrysalislabs/chrysalis/pkg/cliui"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
	"github.com/chrysalislabs/chrysalis/pkg/logger"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

type rememberCommander struct {
	memoryType string
	tags       []string
	importance float64
	confidence float64
	id         string
	debug      bool
	configDir  string
	logger     *zap.Logger
}

const rememberLongDesc string = `Store a new memory on this replica.

The memory is written locally first and queued for sync; it survives
offline operation and merges cleanly when the gateway is reachable.

Examples:
  chrysalis remember "user prefers window seats" --type semantic --tags travel
  chrysalis remember "deploy failed on 2026-08-12" --importance 0.8`

const rememberShortDesc string = "Store a new memory"

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.memoryType, "type", "t", "episodic", "Memory type (episodic, semantic, procedural, working)")
	cmd.Flags().StringSliceVar(&cmder.tags, "tags", nil, "Tags to attach to the memory")
	cmd.Flags().Float64Var(&cmder.importance, "importance", 0, "Initial importance score (0..1)")
	cmd.Flags().Float64Var(&cmder.confidence, "confidence", 0, "Initial confidence score (0..1)")
	cmd.Flags().StringVar(&cmder.id, "id", "", "Fixed memory id (defaults to a fresh UUID)")

	return cmd
}

func (c *rememberCommander) run(content string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	typ, err := memory.ParseType(c.memoryType)
	if err != nil {
		return err
	}

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

	opts := []agent.Option{agent.WithType(typ)}
	if c.id != "" {
		opts = append(opts, agent.WithID(c.id))
	}
	if len(c.tags) > 0 {
		opts = append(opts, agent.WithTags(c.tags...))
	}
	if c.importance > 0 {
		opts = append(opts, agent.WithImportance(c.importance))
	}
	if c.confidence > 0 {
		opts = append(opts, agent.WithConfidence(c.confidence))
	}

	doc, err := mem.Learn(ctx, content, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Remembered %s %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(doc.ID),
		cliui.DimStyle.Render(fmt.Sprintf("(%s)", doc.Type)),
	)
	return nil
}

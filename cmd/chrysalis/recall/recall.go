// Package recallcmder provides the recall command for querying memories.
package recallcmder

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
	"github.com/chrysalislabs/chrysalis/pkg/utils"
)

type recallCommander struct {
	k             int
	memoryType    string
	tag           string
	minImportance float64
	debug         bool
	configDir     string
	logger        *zap.Logger
}

const recallLongDesc string = `Retrieve memories relevant to a query.

Ranking uses the vector index when one is configured, falls back to
cosine similarity over stored embeddings, and finally to token overlap.

Examples:
  chrysalis recall "seat preferences"
  chrysalis recall "deploy failures" -k 3 --type episodic`

const recallShortDesc string = "Retrieve memories relevant to a query"

func NewRecallCmd() *cobra.Command {
	cmder := &recallCommander{}

	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
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

	cmd.Flags().IntVarP(&cmder.k, "top-k", "k", 5, "Number of results to return")
	cmd.Flags().StringVarP(&cmder.memoryType, "type", "t", "", "Restrict to one memory type")
	cmd.Flags().StringVar(&cmder.tag, "tag", "", "Restrict to memories carrying this tag")
	cmd.Flags().Float64Var(&cmder.minImportance, "min-importance", 0, "Importance floor for candidates")

	return cmd
}

func (c *recallCommander) run(query string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	filters := agent.RecallFilters{
		Tag:           c.tag,
		MinImportance: c.minImportance,
	}
	if c.memoryType != "" {
		typ, err := memory.ParseType(c.memoryType)
		if err != nil {
			return err
		}
		filters.Type = typ
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

	results, err := mem.Recall(ctx, query, c.k, filters)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No relevant memories."))
		return nil
	}

	fmt.Println()
	for _, r := range results {
		fmt.Printf("  %s  %s\n      %s %s\n",
			cliui.ScoreStyle.Render(fmt.Sprintf("%.3f", r.Score)),
			cliui.ValueStyle.Render(utils.Truncate(r.Document.Content.Value, 96)),
			cliui.DimStyle.Render(string(r.Document.Type)),
			cliui.DimStyle.Render(r.Document.ID),
		)
	}
	fmt.Println()

	return nil
}

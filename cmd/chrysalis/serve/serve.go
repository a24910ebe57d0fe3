// Package servecmder provides the serve command running the replica services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/api"
	agentutils "github.com/chrysalislabs/chrysalis/pkg/agent/utils"
	"github.com/chrysalislabs/chrysalis/pkg/config"
	"github.com/chrysalislabs/chrysalis/pkg/dotdir"
	"github.com/chrysalislabs/chrysalis/pkg/logger"
)

type ServeCommander struct {
	listen     string
	instanceID string
	gatewayURL string
	sqlitePath string
	debug      bool
	configDir  string
	logger     *zap.Logger
}

const serveLongDesc string = `Run the replica services.

Starts the HTTP API server and, when sync is enabled, the background
reconciliation loop against the configured gateway. The replica keeps
serving reads and writes even when the gateway is unreachable.`

const serveShortDesc string = "Run the replica API server"

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	config.FlagInstanceID: {
		Name: "instance", Shorthand: "i",
		ViperKey:    "instance.id",
		Description: "Replica instance id stamping every write",
	},
	config.FlagGatewayURL: {
		Name: "gateway", Shorthand: "g",
		ViperKey:    "sync.gateway_url",
		Description: "Sync gateway websocket URL",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite memories database",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagInstanceID,
	config.FlagGatewayURL,
	config.FlagSQLite,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagInstanceID, &cmder.instanceID)
	config.AddStringFlag(cmd, serveFlags, config.FlagGatewayURL, &cmder.gatewayURL)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

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

	mem.Start()
	defer mem.Stop()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, mem, c.logger)

	c.logger.Info("starting replica",
		zap.String("instance", cfg.Instance.ID),
		zap.String("listen", cfg.API.Listen),
		zap.String("storage", cfg.Storage.Provider),
		zap.Bool("sync", cfg.Sync.Enabled),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// Package configcmder provides the config command for managing persistent
// chrysalis configuration stored in the .chrysalis/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chrysalis configuration.

Configuration is stored as config.toml in the .chrysalis/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  instance.id,
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen,
  sync.enabled, sync.gateway_url, sync.interval_seconds, sync.batch_size,
  vector_index.provider, vector_index.db_path,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  events.provider, events.topic,
  memory.promotion_threshold

Use subcommands to get, set, or list configuration values:
  chrysalis config set <key> <value>    Set a configuration value
  chrysalis config get <key>            Get a configuration value
  chrysalis config list                 List all configuration values

Examples:
  chrysalis config set instance.id laptop
  chrysalis config set sync.gateway_url ws://hub.internal:7762/sync
  chrysalis config get storage.provider
  chrysalis config list`

const configShortDesc string = "Manage persistent chrysalis configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

package subcmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jakegut/quickwit/kernel/loader"
	"github.com/jakegut/quickwit/kernel/mcp"
	"github.com/jakegut/quickwit/kernel/metastore"
)

func init() {
	RootCmd.AddCommand(NewMCPServerCommand())
}

func NewMCPServerCommand() *cobra.Command {
	mcpCmd := &MCPServerCommand{}

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start an MCP server exposing the metastore to AI assistants",
		Long: `Start an MCP (Model Context Protocol) server on stdio.

Tools:
  - list_indexes: list all indexes in the metastore
  - create_index: register a new index
  - delete_index: remove an index (its pipeline stops on the janitor's next pass)
  - create_delete_task: queue a delete query against an index

Resources:
  - janitor://status: index count and running pipelines`,
		RunE: mcpCmd.run,
	}

	cmd.Flags().StringVarP(&mcpCmd.ConfigPath, "config", "c", "", "path to janitor configuration file")
	cmd.Flags().BoolVar(&mcpCmd.UseMemoryStore, "memory", false, "use an in-memory metastore (for testing)")

	return cmd
}

type MCPServerCommand struct {
	ConfigPath     string
	UseMemoryStore bool
}

func (m *MCPServerCommand) run(cmd *cobra.Command, args []string) error {
	var ms metastore.Metastore
	if m.UseMemoryStore || m.ConfigPath == "" {
		logrus.Info("using in-memory metastore")
		ms = metastore.NewMemoryMetastore()
	} else {
		cfg, err := loader.LoadConfig(m.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if ms, err = newMetastore(cfg.MetastoreURI); err != nil {
			return err
		}
	}

	logrus.Info("starting MCP server on stdio...")
	server := mcp.NewJanitorMCPServer(ms, nil)
	return server.ServeStdio()
}

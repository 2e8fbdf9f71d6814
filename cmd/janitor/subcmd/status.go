package subcmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jakegut/quickwit/kernel/loader"
)

func init() {
	RootCmd.AddCommand(NewStatusCommand())
}

func NewStatusCommand() *cobra.Command {
	statusCmd := &StatusCommand{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the indexes the janitor would manage",
		RunE:  statusCmd.status,
	}

	cmd.Flags().StringVarP(&statusCmd.ConfigPath, "config", "c", "", "path to janitor configuration file")
	cmd.MarkFlagRequired("config")

	return cmd
}

type StatusCommand struct {
	ConfigPath string
}

func (s *StatusCommand) status(cmd *cobra.Command, args []string) error {
	cfg, err := loader.LoadConfig(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ms, err := newMetastore(cfg.MetastoreURI)
	if err != nil {
		return err
	}

	descriptors, err := ms.ListActiveIndexes(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].IndexID < descriptors[j].IndexID
	})

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"INDEX ID", "UID", "URI", "CREATED"})
	for _, desc := range descriptors {
		t.AppendRow(table.Row{
			desc.IndexID,
			desc.Uid.String(),
			desc.IndexURI,
			time.Unix(desc.CreateTimestamp, 0).UTC().Format(time.RFC3339),
		})
	}
	t.Render()
	return nil
}

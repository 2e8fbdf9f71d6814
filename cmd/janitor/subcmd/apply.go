package subcmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jakegut/quickwit/kernel/loader"
	"github.com/jakegut/quickwit/kernel/model"
)

func init() {
	RootCmd.AddCommand(NewApplyCommand())
}

func NewApplyCommand() *cobra.Command {
	applyCmd := &ApplyCommand{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML list of indexes to the metastore",
		RunE:  applyCmd.apply,
	}

	cmd.Flags().StringVarP(&applyCmd.IndexesPath, "file", "f", "", "path to YAML file listing indexes")
	cmd.Flags().StringVarP(&applyCmd.ConfigPath, "config", "c", "", "path to janitor configuration file")
	cmd.Flags().BoolVar(&applyCmd.DryRun, "dry-run", false, "validate the file without applying")
	cmd.Flags().BoolVar(&applyCmd.Prune, "prune", false, "delete indexes absent from the file")
	cmd.MarkFlagRequired("file")

	return cmd
}

type ApplyCommand struct {
	IndexesPath string
	ConfigPath  string
	DryRun      bool
	Prune       bool
}

func (a *ApplyCommand) apply(cmd *cobra.Command, args []string) error {
	definitions, err := loader.LoadIndexes(a.IndexesPath)
	if err != nil {
		return fmt.Errorf("failed to load index file: %w", err)
	}

	if a.DryRun {
		logrus.Infof("dry-run: %d index definition(s)", len(definitions))
		for _, def := range definitions {
			logrus.Infof("  index '%s' -> %s", def.IndexID, def.IndexURI)
		}
		return nil
	}

	cfg := &model.JanitorConfig{}
	if a.ConfigPath != "" {
		if cfg, err = loader.LoadConfig(a.ConfigPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg.ApplyDefaults()
	}
	ms, err := newMetastore(cfg.MetastoreURI)
	if err != nil {
		return err
	}
	if cfg.MetastoreURI == model.DefaultMetastoreURI {
		logrus.Warn("applying against an in-memory metastore; changes will not outlive this process")
	}

	ctx := cmd.Context()
	existing, err := ms.ListActiveIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	existingByID := make(map[string]model.IndexDescriptor, len(existing))
	for _, desc := range existing {
		existingByID[desc.IndexID] = desc
	}

	desired := make(map[string]struct{}, len(definitions))
	var created, unchanged int
	for _, def := range definitions {
		desired[def.IndexID] = struct{}{}
		if current, ok := existingByID[def.IndexID]; ok {
			if current.IndexURI != def.IndexURI {
				logrus.Warnf("index '%s' already exists with uri %s; delete and re-apply to move it",
					def.IndexID, current.IndexURI)
			}
			unchanged++
			continue
		}
		if _, err := ms.CreateIndex(ctx, def.IndexID, def.IndexURI); err != nil {
			return fmt.Errorf("failed to create index '%s': %w", def.IndexID, err)
		}
		created++
	}

	var pruned int
	if a.Prune {
		for indexID := range existingByID {
			if _, keep := desired[indexID]; keep {
				continue
			}
			if err := ms.DeleteIndex(ctx, indexID); err != nil {
				return fmt.Errorf("failed to delete index '%s': %w", indexID, err)
			}
			pruned++
		}
	}

	logrus.Infof("apply: created %d, unchanged %d, pruned %d", created, unchanged, pruned)
	return nil
}

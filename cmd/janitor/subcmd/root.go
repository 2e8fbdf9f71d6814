package subcmd

import (
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jakegut/quickwit/kernel/metastore"
)

var verbose bool

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

var RootCmd = &cobra.Command{
	Use:   "janitor",
	Short: "Keeps one delete-task pipeline running per index",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

// newMetastore builds a metastore client from its uri. ram:// state does not
// outlive the process; file:// roots are shared between invocations.
func newMetastore(rawURI string) (metastore.Metastore, error) {
	uri, err := url.Parse(rawURI)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid metastore uri '%s'", rawURI)
	}
	switch uri.Scheme {
	case "ram":
		return metastore.NewMemoryMetastore(), nil
	case "file":
		return metastore.NewFileMetastore(uri.Path)
	default:
		return nil, errors.Errorf("unsupported metastore scheme '%s' in uri '%s'", uri.Scheme, rawURI)
	}
}

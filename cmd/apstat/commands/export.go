package commands

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"
)

var exportFile string

//NewExportCmd returns the command that writes the local state as a sync blob
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write the chain, mempool, and distributions as a sync blob",
		PreRunE: loadConfig,
		RunE:    exportBlob,
	}
	AddSyncFlags(cmd)
	cmd.Flags().StringVarP(&exportFile, "out", "o", "", "File to write the blob to (default stdout)")
	return cmd
}

func exportBlob(cmd *cobra.Command, args []string) error {
	n, err := buildOfflineNode()
	if err != nil {
		return err
	}
	defer n.Shutdown()

	blob, err := n.Export()
	if err != nil {
		return err
	}

	if exportFile == "" {
		_, err := os.Stdout.Write(append(blob, '\n'))
		return err
	}

	if err := ioutil.WriteFile(exportFile, blob, 0600); err != nil {
		return err
	}

	fmt.Printf("Sync blob written to: %s\n", exportFile)

	return nil
}

//AddSyncFlags adds the store and config flags shared by the sync commands
func AddSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in in-memory caches")
	cmd.Flags().String("answers", _config.AnswersFile, "JSON file of reference answers keyed by question id")
	cmd.Flags().Bool("mock-crypto", _config.MockCrypto, "Use the lightweight mock hash backend")
}

package commands

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"
)

var importFile string

//NewImportCmd returns the command that merges a peer's sync blob
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import",
		Short:   "Merge a peer's sync blob into the local state",
		PreRunE: loadConfig,
		RunE:    importBlob,
	}
	AddSyncFlags(cmd)
	cmd.Flags().StringVarP(&importFile, "in", "i", "", "File to read the blob from (default stdin)")
	return cmd
}

func importBlob(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if importFile == "" {
		raw, err = ioutil.ReadAll(os.Stdin)
	} else {
		raw, err = ioutil.ReadFile(importFile)
	}
	if err != nil {
		return err
	}

	n, err := buildOfflineNode()
	if err != nil {
		return err
	}
	defer n.Shutdown()

	rejected, err := n.Import(raw)
	if err != nil {
		return err
	}

	fmt.Printf("Merged sync blob: %d blocks, %d rejected records\n", n.ChainLength(), rejected)

	return nil
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/robjohncolson/apstat-chain/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for the apstat engine
var RootCmd = &cobra.Command{
	Use:              "apstat",
	Short:            "attestation chain engine",
	TraverseChildren: true,
}

package command

import (
	"github.com/fahertym/InterCooperative-Network/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for the icn binary
var RootCmd = &cobra.Command{
	Use:              "icn",
	Short:            "cooperative ledger node",
	TraverseChildren: true,
}

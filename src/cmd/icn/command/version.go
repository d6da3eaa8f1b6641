package command

import (
	"fmt"

	"github.com/fahertym/InterCooperative-Network/src/version"
	"github.com/spf13/cobra"
)

// VersionCmd displays the version of icn being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

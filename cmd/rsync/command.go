// Package rsync provides the "rsync" command: sync with the source and
// target argument order reversed, a convenience alias.
package rsync

import (
	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	hsync "github.com/ambrevar/hsync/cmd/sync"
)

var rsyncCmd = &cobra.Command{
	Use:   "rsync <target> <source>",
	Short: "sync with source and target arguments reversed",
	Args:  cobra.ExactArgs(2),
	RunE:  hsync.RunE(true),
}

func init() {
	rsyncCmd.Flags().BoolP("process", "p", false, "Actually perform the plan instead of a dry run")
	cmd.Register(rsyncCmd)
}

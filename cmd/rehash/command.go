// Package rehash provides the "rehash" command: like update, but every
// cached entry is treated as stale and rehashed unconditionally.
package rehash

import (
	"github.com/spf13/cobra"

	"github.com/ambrevar/hsync/cmd"
	"github.com/ambrevar/hsync/cmd/update"
)

var rehashCmd = &cobra.Command{
	Use:   "rehash <dir>",
	Short: "Rehash every file in a tree, ignoring cached freshness",
	Args:  cobra.ExactArgs(1),
	RunE:  update.RunE(true),
}

func init() {
	cmd.Register(rehashCmd)
}

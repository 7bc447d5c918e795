// Package main is the entry point for the hsync CLI application.
// It initializes all subcommands and executes the root command.
package main

import (
	"github.com/ambrevar/hsync/cmd"
	_ "github.com/ambrevar/hsync/cmd/check"
	_ "github.com/ambrevar/hsync/cmd/cleandb"
	_ "github.com/ambrevar/hsync/cmd/cmp"
	_ "github.com/ambrevar/hsync/cmd/fdupes"
	_ "github.com/ambrevar/hsync/cmd/lookup"
	_ "github.com/ambrevar/hsync/cmd/mkoffline"
	_ "github.com/ambrevar/hsync/cmd/onall"
	_ "github.com/ambrevar/hsync/cmd/onfirstonly"
	_ "github.com/ambrevar/hsync/cmd/onlastonly"
	_ "github.com/ambrevar/hsync/cmd/rehash"
	_ "github.com/ambrevar/hsync/cmd/rsync"
	_ "github.com/ambrevar/hsync/cmd/search"
	_ "github.com/ambrevar/hsync/cmd/subdir"
	_ "github.com/ambrevar/hsync/cmd/sync"
	_ "github.com/ambrevar/hsync/cmd/syncr"
	_ "github.com/ambrevar/hsync/cmd/update"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}

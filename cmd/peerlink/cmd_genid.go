package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// genidCmd generates a fresh party id. Useful when rotating a device's
// identity without rewriting the rest of the config.
var genidCmd = &cobra.Command{
	Use:   "genid",
	Short: "Generate a new party id",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(uuid.NewString())
	},
}

package cli

import (
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Derive and print the device's program accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Resolve(cmd.Context())
	},
}

// Package sbpcmder builds the sbp root command.
package sbpcmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/stigmergic-labs/sbp/cmd/sbp/serve"
	versioncmder "github.com/stigmergic-labs/sbp/cmd/version"
)

const sbpLongDesc string = `sbp is a stigmergic blackboard for coordinating agents through decaying
signals instead of direct messages.

Run the transport using:
  sbp serve    Run the blackboard and its JSON-RPC/SSE transport`

const sbpShortDesc string = "sbp - Stigmergic Blackboard Protocol"

func NewSBPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sbp",
		Short: sbpShortDesc,
		Long:  sbpLongDesc,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to the .sbp config directory (defaults to ./.sbp or ~/.sbp)")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/api"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rockctl %s (%s %s/%s)\n", api.ServerVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

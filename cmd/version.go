package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// GetVersion returns the current version information
func GetVersion() string {
	return version
}

// GetFullVersionInfo returns version, commit and build date plus the runtime
// the binary was built with.
func GetFullVersionInfo() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuilt: %s\nGo: %s %s/%s",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// GetVersionWithPrefix returns version with "edge-relay version: " prefix
func GetVersionWithPrefix() string {
	return fmt.Sprintf("edge-relay version: %s", GetVersion())
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of edge-relay",
		Run: func(cmd *cobra.Command, args []string) {
			if detailed, _ := cmd.Flags().GetBool("detailed"); detailed {
				fmt.Fprintln(cmd.OutOrStdout(), GetFullVersionInfo())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), GetVersionWithPrefix())
		},
	}
	cmd.Flags().BoolP("detailed", "d", false, "Show detailed version information")
	return cmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/storyweaver"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of storyweaver",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storyweaver version %s\n", strings.TrimSpace(storyweaver.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

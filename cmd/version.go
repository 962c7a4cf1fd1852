////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles command-line version functionality

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Change this value to set the version for this build
const currentVersion = "1.0.0"

func Version() string {
	return fmt.Sprintf("Parley Client v%s\n", currentVersion)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of the parley binary",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(Version())
	},
}

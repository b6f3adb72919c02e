package main

import (
	"fmt"
	"runtime"

	"github.com/richinsley/py4go"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "py4go %s (%s, %s/%s)\n", py4go.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		python, _ := cmd.Flags().GetString("python")
		if python == "" {
			return nil
		}
		v, err := py4go.ProbePythonVersion(cmd.Context(), python)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "python %s\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("python", "", "Also report the version of this interpreter")
}

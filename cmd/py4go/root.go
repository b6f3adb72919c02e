package main

import (
	"os"

	"github.com/richinsley/py4go"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var rootCmd = &cobra.Command{
	Use:   "py4go",
	Short: "Expose Go objects to a Python interpreter over a local socket",
	Long: `py4go runs a gateway server that a Python interpreter connects to in
order to create, inspect and call Go objects, and that calls back into the
interpreter through Python-side proxies.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = py4go.Version
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeat for more)")
	rootCmd.PersistentFlags().String("log", "", "Log to this file instead of stderr")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		verbose, _ := rootCmd.PersistentFlags().GetCount("verbose")
		logPath, _ := rootCmd.PersistentFlags().GetString("log")
		var path *string
		if logPath != "" {
			path = &logPath
		}
		commonlog.Configure(verbose, path)
		return nil
	}
}

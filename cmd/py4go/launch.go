package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var launchCmd = &cobra.Command{
	Use:   "launch script.py [args...]",
	Short: "Run a gateway server and a Python program connected to it",
	Long: `Start a gateway server, then launch a Python program with the gateway
port and auth token in its environment (PY4GO_PORT, PY4GO_AUTH_TOKEN).
The program reports the port of its callback server by calling
py4go_launcher.ready(port); calls into Python then go to that port.

The server stops when the program exits.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLaunch,
}

func init() {
	rootCmd.AddCommand(launchCmd)
	addServerFlags(launchCmd.Flags())
	launchCmd.Flags().String("python", "", "Interpreter to run (default from config, else found on PATH)")
	launchCmd.Flags().String("dir", "", "Working directory of the program")
	launchCmd.Flags().SetInterspersed(false)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if python, _ := cmd.Flags().GetString("python"); python != "" {
		cfg.Python = python
	}
	dir, _ := cmd.Flags().GetString("dir")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	server := newServer(cfg)
	if err := server.Start(ctx); err != nil {
		return err
	}

	ip, err := py4go.Launch(ctx, py4go.LaunchOptions{
		Python:      cfg.Python,
		Script:      args[0],
		Args:        args[1:],
		Dir:         dir,
		GatewayPort: server.Port(),
		AuthToken:   cfg.AuthToken,
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	})
	if err != nil {
		server.Shutdown()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer server.Shutdown()
		if err := ip.Wait(); err != nil {
			return errors.Wrapf(err, "%s failed", args[0])
		}
		return nil
	})
	g.Go(func() error {
		port, err := ip.WaitReady(gctx)
		if err != nil {
			log.Debugf("no callback server: %v", err)
			return nil
		}
		if port > 0 {
			server.ResetCallbackClient(cfg.PythonAddress, port)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-server.Done():
		case <-gctx.Done():
			server.Shutdown()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "gateway stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/richinsley/py4go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("py4go.cli")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a gateway server",
	Long: `Run a gateway server exposing a small built-in entry point until
interrupted or until the interpreter sends the shutdown command.

Examples:
  py4go serve
  py4go serve --port 25333 --python-port 25334 --auth-token secret
  py4go serve --config gateway.yaml --print-config`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd.Flags())
	serveCmd.Flags().Bool("print-config", false, "Print the effective configuration as YAML and exit")
}

func addServerFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Configuration file (.yaml, .yml or .toml)")
	flags.String("address", py4go.DefaultAddress, "Address to listen on")
	flags.Int("port", py4go.DefaultPort, "Port to listen on (0 picks a free port)")
	flags.String("python-address", py4go.DefaultAddress, "Address of the interpreter's callback server")
	flags.Int("python-port", py4go.DefaultPythonPort, "Port of the interpreter's callback server")
	flags.String("auth-token", "", "Token the interpreter must present")
	flags.Bool("generate-token", false, "Generate a random auth token")
	flags.Bool("pinned", false, "Keep nested calls between the processes on one connection")
	flags.Duration("read-timeout", 0, "Read timeout for every connection (0 waits forever)")
}

// loadConfig builds the configuration from the file named by --config and
// the flags given explicitly.
func loadConfig(flags *pflag.FlagSet) (py4go.Config, error) {
	cfg := py4go.DefaultConfig()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = py4go.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("address") {
		cfg.Address, _ = flags.GetString("address")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("python-address") {
		cfg.PythonAddress, _ = flags.GetString("python-address")
	}
	if flags.Changed("python-port") {
		cfg.PythonPort, _ = flags.GetInt("python-port")
	}
	if flags.Changed("auth-token") {
		cfg.AuthToken, _ = flags.GetString("auth-token")
	}
	if gen, _ := flags.GetBool("generate-token"); gen {
		cfg.AuthToken = uuid.NewString()
	}
	if flags.Changed("pinned") {
		cfg.PinnedThread, _ = flags.GetBool("pinned")
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout, _ = flags.GetDuration("read-timeout")
	}
	return cfg, nil
}

func newServer(cfg py4go.Config) *py4go.GatewayServer {
	return py4go.NewGatewayServer(newEntryPoint(),
		py4go.WithConfig(cfg),
		py4go.WithListener(logListener{}),
	)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if show, _ := cmd.Flags().GetBool("print-config"); show {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	server := newServer(cfg)
	if cfg.AuthToken != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "auth token: %s\n", cfg.AuthToken)
	}
	if err := server.Serve(ctx); err != nil {
		return errors.Wrap(err, "gateway failed")
	}
	return nil
}

// logListener logs server and connection events.
type logListener struct {
	py4go.DefaultServerListener
}

func (logListener) ServerStarted(s *py4go.GatewayServer) {
	log.Noticef("gateway listening on %s", s.Addr())
}

func (logListener) ServerStopped(s *py4go.GatewayServer) {
	log.Noticef("gateway stopped")
}

func (logListener) ServerError(s *py4go.GatewayServer, err error) {
	log.Errorf("gateway error: %v", err)
}

func (logListener) ConnectionStarted(c *py4go.GatewayConnection) {
	log.Infof("connection from %s", c.RemoteAddr())
}

func (logListener) ConnectionStopped(c *py4go.GatewayConnection) {
	log.Infof("connection from %s closed", c.RemoteAddr())
}

func (logListener) ConnectionError(c *py4go.GatewayConnection, err error) {
	log.Warningf("connection from %s failed: %v", c.RemoteAddr(), err)
}

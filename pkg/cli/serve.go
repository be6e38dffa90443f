package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getjsond/jsond/internal/store"
	"github.com/getjsond/jsond/pkg/config"
	"github.com/getjsond/jsond/pkg/engine"
	"github.com/getjsond/jsond/pkg/logging"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful shutdown after an interrupt.
const shutdownTimeout = 5 * time.Second

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	configPath string
	file       string
	host       string
	port       int
	delay      int
	noCORS     bool
	watch      bool
	readOnly   bool
	logLevel   string
	logFormat  string
}

// serveFlagVals is the package-level instance bound to cobra flags.
var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve [data-file]",
	Short: "Start the REST API server (default command)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	addServeFlags(serveCmd)
}

// addServeFlags registers the serve flag set on a command. The root command
// shares it so `jsond db.json` works without the serve keyword.
func addServeFlags(cmd *cobra.Command) {
	f := &serveFlagVals

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to an options file (YAML or JSON)")
	cmd.Flags().StringVar(&f.file, "file", "", "Path to the JSON data file")
	cmd.Flags().StringVar(&f.host, "host", config.DefaultHost, "Bind address")
	cmd.Flags().IntVarP(&f.port, "port", "p", config.DefaultPort, "HTTP server port")
	cmd.Flags().IntVarP(&f.delay, "delay", "d", 0, "Artificial delay per request in milliseconds")
	cmd.Flags().BoolVar(&f.noCORS, "no-cors", false, "Disable cross-origin headers")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Reload when the data file changes externally")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "Reject all mutating requests with 403")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	f := &serveFlagVals

	opts := config.Default()
	if f.configPath != "" {
		loaded, err := config.LoadFromFile(f.configPath)
		if err != nil {
			return err
		}
		opts = loaded
	}

	// Flags set on the command line override options-file values.
	flags := cmd.Flags()
	if flags.Changed("file") {
		opts.File = f.file
	}
	if flags.Changed("host") {
		opts.Host = f.host
	}
	if flags.Changed("port") {
		opts.Port = f.port
	}
	if flags.Changed("delay") {
		opts.Delay = f.delay
	}
	if flags.Changed("no-cors") {
		opts.NoCORS = f.noCORS
	}
	if flags.Changed("watch") {
		opts.Watch = f.watch
	}
	if flags.Changed("read-only") {
		opts.ReadOnly = f.readOnly
	}
	if flags.Changed("log-level") {
		opts.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		opts.LogFormat = f.logFormat
	}

	// A positional data file takes precedence over everything.
	if len(args) == 1 {
		opts.File = args[0]
	}

	if err := opts.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(opts.File); os.IsNotExist(err) {
		return fmt.Errorf("data file not found: %s (run 'jsond init' to create one)", opts.File)
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.LogLevel),
		Format: logging.ParseFormat(opts.LogFormat),
	})

	st := store.New(opts.File,
		store.WithReadOnly(opts.ReadOnly),
		store.WithLogger(log.With("component", "store")),
	)
	if err := st.Load(); err != nil {
		return fmt.Errorf("failed to load data file: %w", err)
	}

	srv := engine.NewServer(opts, st, engine.WithLogger(log.With("component", "engine")))
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Wait for shutdown signal.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/melody/internal/api/connect"
	"github.com/osa030/melody/internal/app/filter"
	"github.com/osa030/melody/internal/app/session"
	"github.com/osa030/melody/internal/cli"
	"github.com/osa030/melody/internal/infra/config"
	"github.com/osa030/melody/internal/infra/logger"
)

var (
	app        = kingpin.New("melody", "Terminal music player")
	configPath = app.Flag("config", "Path to config file").Default("config/melody.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: console)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle list-filters command
	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	// Load config before the logger so the file can set the log level
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	rl, err := cli.NewTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	// Initialize logger
	loggerConfig := logger.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: rl.Stderr(),
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	zlog.Info().Msgf("Loaded config from %s", *configPath)

	// Run player (defer ensures the terminal is restored)
	if err := run(cfg, rl); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		rl.Close()
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, rl *readline.Instance) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create session manager
	sessionMgr, err := session.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer sessionMgr.Close()

	shell := cli.NewShell(rl, sessionMgr)
	notifManager := sessionMgr.GetNotificationManager()
	subscriptionID := notifManager.Subscribe(shell.Notifications())
	defer notifManager.Unsubscribe(subscriptionID)

	// Start control server
	var server *http.Server
	serverErrCh := make(chan error, 1)
	if cfg.Control.Enabled {
		server = newControlServer(cfg, sessionMgr)
		go func() {
			zlog.Info().Msgf("Starting control server: addr=%s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErrCh <- err
			}
		}()
	}

	// Run shell until bye
	shellDone := make(chan error, 1)
	go func() {
		shellDone <- shell.Run(ctx)
	}()

	// Wait for bye, shutdown signal, or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-shellDone:
		if err != nil {
			zlog.Error().Msgf("Shell error: %v", err)
		}
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
		// Closing the terminal makes the shell run bye
		rl.Close()
		<-shellDone
	case err := <-serverErrCh:
		rl.Close()
		<-shellDone
		return fmt.Errorf("control server error: %w", err)
	}

	// Close session manager first to terminate active streams
	sessionMgr.Close()

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown control server: %v", err)
		}
	}

	zlog.Info().Msg("Player stopped")
	return nil
}

// newControlServer creates the h2c control server.
func newControlServer(cfg *config.Config, sessionMgr *session.Manager) *http.Server {
	mux := http.NewServeMux()
	path, handler := apiconnect.NewControlServiceHandler(
		apiconnect.NewControlService(sessionMgr),
		connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg.Control.Token)),
	)
	mux.Handle(path, handler)

	if cfg.Control.Token == "" {
		zlog.Warn().Msg("Control server has no token; anyone who can reach it can drive the player")
	}

	// Create server with h2c (HTTP/2 cleartext) support
	return &http.Server{
		Addr:    cfg.Control.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registry := filter.GetRegistered()
	for _, name := range filter.Names() {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// Package daemon provides the form revision review service daemon.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lvivas2/formTelecom/internal/cli"
	"github.com/lvivas2/formTelecom/internal/config"
	"github.com/lvivas2/formTelecom/internal/constants"
	"github.com/lvivas2/formTelecom/internal/metrics"
	"github.com/lvivas2/formTelecom/internal/review"
	"github.com/lvivas2/formTelecom/internal/store"
	"github.com/lvivas2/formTelecom/internal/webservice"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon  *webservice.Server
	metrics *metrics.Server
	db      *store.Manager
	manager *review.Manager

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool

	AccessConfigPath string
	Debounce         time.Duration

	DBconfig      store.Config
	MetricsConfig metrics.Config
	WebConfig     webservice.StaticConfig
	MigrationsDir string
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.CmdName,
		Short:         "Vehicle maintenance form revision review service",
		Long:          "The review service receives vehicle maintenance inspection submissions, stores them as revisions in PostgreSQL, and lets analysts review and correct the extracted form data before it is processed.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}
			slog.Info("got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	installMigrateCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	// Daemon flags
	cmd.Flags().StringVarP(&app.config.AccessConfigPath, "access-config", "c", "", "path to the analyst access configuration file")
	cmd.Flags().DurationVar(&app.config.Debounce, "autosave-debounce", 500*time.Millisecond, "debounce window for autosaving analyst edits")

	// Web server flags
	cmd.Flags().DurationVar(&app.config.WebConfig.ReadTimeout, "read-timeout", 5*time.Second, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.WebConfig.WriteTimeout, "write-timeout", 10*time.Second, "write timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.WebConfig.RequestTimeout, "request-timeout", 3*time.Second, "request timeout for HTTP server")
	cmd.Flags().IntVar(&app.config.WebConfig.MaxHeaderBytes, "max-header-bytes", 1<<13, "maximum header bytes for HTTP server")
	cmd.Flags().IntVar(&app.config.WebConfig.MaxBodyBytes, "max-body-bytes", 1<<17, "maximum request body bytes for HTTP server")
	cmd.Flags().StringVar(&app.config.WebConfig.ListenHost, "listen-host", "", "host to listen on")
	cmd.Flags().IntVar(&app.config.WebConfig.ListenPort, "listen-port", 8080, "port to listen on")

	// Metrics server flags
	cmd.Flags().DurationVar(&app.config.MetricsConfig.ReadTimeout, "metrics-read-timeout", 5*time.Second, "read timeout for the metrics HTTP server")
	cmd.Flags().DurationVar(&app.config.MetricsConfig.WriteTimeout, "metrics-write-timeout", 10*time.Second, "write timeout for the metrics HTTP server")
	cmd.Flags().StringVar(&app.config.MetricsConfig.Host, "metrics-host", "", "host for the metrics endpoint")
	cmd.Flags().IntVar(&app.config.MetricsConfig.Port, "metrics-port", 2112, "port for the metrics endpoint")

	addDBFlags(cmd, &app.config.DBconfig)

	if err := cmd.MarkFlagFilename("access-config"); err != nil {
		panic(fmt.Sprintf("failed to mark access-config flag as filename: %v", err))
	}
}

func addDBFlags(cmd *cobra.Command, config *store.Config) {
	cmd.Flags().StringVar(&config.Host, "db-host", "", "database host")
	cmd.Flags().IntVarP(&config.Port, "db-port", "p", 5432, "database port")
	cmd.Flags().StringVarP(&config.User, "db-user", "u", "", "database user")
	cmd.Flags().StringVarP(&config.Password, "db-password", "P", "", "database password")
	cmd.Flags().StringVarP(&config.DBName, "db-name", "n", constants.DefaultDBName, "database name")
	cmd.Flags().StringVarP(&config.SSLMode, "db-sslmode", "s", "", "database SSL mode")
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	defer func() {
		select {
		case <-a.ready:
		default:
			close(a.ready)
		}
	}()

	a.config.AccessConfigPath, err = filepath.Abs(a.config.AccessConfigPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for access config file: %v", err)
	}
	cm := config.New(a.config.AccessConfigPath)

	a.db, err = store.Connect(context.Background(), a.config.DBconfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer func() {
		if cErr := a.db.Close(); cErr != nil {
			slog.Error("Failed to close database", "err", cErr)
		}
	}()

	registry := prometheus.NewRegistry()
	a.manager, err = review.New(a.db, registry, review.WithDebounce(a.config.Debounce))
	if err != nil {
		return fmt.Errorf("failed to create review manager: %v", err)
	}
	defer a.manager.CloseAll()

	a.daemon, err = webservice.New(context.Background(), cm, a.db, a.manager, registry, a.config.WebConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	a.metrics = metrics.New(a.config.MetricsConfig, registry)
	go func() {
		if err := a.metrics.ListenAndServe(); err != nil {
			slog.Error("Metrics server exited", "err", err)
		}
	}()
	defer func() {
		if cErr := a.metrics.Close(); cErr != nil {
			slog.Error("Failed to close metrics server", "err", cErr)
		}
	}()

	close(a.ready)
	return a.daemon.Run()
}

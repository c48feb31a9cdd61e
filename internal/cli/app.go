package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow"
)

// App holds the collaborators the commands run against. Connect fills in
// the nil ones the first time a command needs them.
type App struct {
	Manager *engine.CaseManager
	Users   engine.UserRepo
	// Serve blocks serving the HTTP API until ctx is done.
	Serve func(ctx context.Context) error
	// Connect wires the App from configuration.
	Connect func(app *App) error

	closers []func() error
}

// NewApp returns an App that opens the configured database on first use.
func NewApp() *App {
	return &App{Connect: connectFromConfig}
}

func connectFromConfig(app *App) error {
	wired, err := onboardflow.Setup()
	if err != nil {
		return err
	}
	app.Manager = wired.Manager
	app.Users = wired.Users
	app.Serve = wired.Run
	app.closers = append(app.closers, wired.Close)
	return nil
}

func (app *App) ready() error {
	if app.Manager != nil {
		return nil
	}
	if app.Connect == nil {
		return fmt.Errorf("no case manager configured")
	}
	return app.Connect(app)
}

// Close releases what Connect opened.
func (app *App) Close() {
	for _, c := range app.closers {
		_ = c()
	}
	app.closers = nil
}

// settingFlags maps persistent flags onto the settings they override.
var settingFlags = map[string]string{
	"database-type": config.DATABASE_TYPE,
	"database-url":  config.DATABASE_URL,
	"sqlite-file":   config.DATABASE_SQLLITE_FILE_NAME,
	"port":          config.SERVER_WEB_PORT,
}

// NewRootCommand builds the onboardflow command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "onboardflow",
		Short: "Business onboarding case engine",
		Long: `onboardflow moves business onboarding cases through document
verification, KYC screening, credit analysis and product recommendation,
pausing for analyst review where a worker asks for it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			for flag, setting := range settingFlags {
				if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
					config.Set(setting, f.Value.String())
				}
			}
			return app.ready()
		},
	}
	pf := root.PersistentFlags()
	pf.String("database-type", "", "POSTGRES, MYSQL or SQLLITE (overrides OFLOW_DATABASE_TYPE)")
	pf.String("database-url", "", "database url (overrides OFLOW_DATABASE_URL)")
	pf.String("sqlite-file", "", "SQLite file (overrides OFLOW_DATABASE_SQLLITE_FILE_NAME)")
	root.AddCommand(
		newServeCommand(app),
		newUserCommand(app),
		newCaseCommand(app),
	)
	return root
}

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute(app *App) int {
	defer app.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(app)
	if err := root.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return code
		}
		NewPrinter(root.ErrOrStderr()).Error(err)
		return 1
	}
	return 0
}

func printerFor(cmd *cobra.Command) *Printer {
	return NewPrinter(cmd.OutOrStdout())
}

func errPrinterFor(cmd *cobra.Command) *Printer {
	return NewPrinter(cmd.ErrOrStderr())
}

func parseCaseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("case id must be a positive integer, got %q", arg)
	}
	return id, nil
}

package onboardflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/internal/controllers"
	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/migrations"
	"github.com/RealZimboGuy/onboardflow/internal/repository"
	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	_ "github.com/go-sql-driver/mysql"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// App is a fully wired onboarding engine: repositories, case manager and
// the HTTP API on top of them.
type App struct {
	DB      *sql.DB
	Cases   *repository.CaseRepository
	Actions *repository.CaseActionRepository
	Users   *repository.UserRepository
	Manager *engine.CaseManager
	Router  *http.ServeMux
	Addr    string
}

// Option overrides a collaborator that Setup would otherwise build from
// configuration.
type Option func(*setupOptions)

type setupOptions struct {
	registry       *workers.Registry
	sender         workers.Sender
	clock          core.Clock
	tracerProvider trace.TracerProvider
}

// WithRegistry replaces the LLM-backed workers, eg with scripted ones.
func WithRegistry(reg *workers.Registry) Option {
	return func(o *setupOptions) { o.registry = reg }
}

// WithSender replaces the logging notification sender.
func WithSender(s workers.Sender) Option {
	return func(o *setupOptions) { o.sender = s }
}

func WithClock(c core.Clock) Option {
	return func(o *setupOptions) { o.clock = c }
}

// WithTracerProvider sends step spans to tp instead of the global provider.
// Without it, spans are only exported when the host installed a provider
// with otel.SetTracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *setupOptions) { o.tracerProvider = tp }
}

// Setup opens and migrates the configured database and wires the engine.
func Setup(opts ...Option) (*App, error) {
	o := setupOptions{sender: workers.LogSender{}, clock: core.NewRealClock(), tracerProvider: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := OpenDatabase()
	if err != nil {
		return nil, err
	}

	if o.registry == nil {
		reg, err := newRegistry()
		if err != nil {
			db.Close()
			return nil, err
		}
		o.registry = reg
	}
	if missing := o.registry.Missing(); len(missing) > 0 {
		slog.Warn("Workers not registered, their steps will fail", "kinds", missing)
	}

	caseRepo := repository.NewCaseRepository(db, o.clock)
	actionRepo := repository.NewCaseActionRepository(db, o.clock)
	userRepo := repository.NewUserRepository(db, o.clock)

	executor := engine.NewStepExecutor(o.registry, o.sender,
		engine.WithClock(o.clock),
		engine.WithTracer(o.tracerProvider.Tracer("github.com/RealZimboGuy/onboardflow")),
		engine.WithDefaultEmail(config.GetSystemSettingString(config.DEFAULT_CUSTOMER_EMAIL)),
	)
	gate := engine.NewReviewGate(o.registry, o.clock)
	manager := engine.NewCaseManager(caseRepo, actionRepo, executor, gate, o.clock)

	return &App{
		DB:      db,
		Cases:   caseRepo,
		Actions: actionRepo,
		Users:   userRepo,
		Manager: manager,
		Router:  controllers.NewRouter(manager, userRepo, config.GetSystemSettingString(config.UPLOAD_DIR)),
		Addr:    ":" + config.GetSystemSettingString(config.SERVER_WEB_PORT),
	}, nil
}

func newRegistry() (*workers.Registry, error) {
	timeout, err := time.ParseDuration(config.GetSystemSettingString(config.LLM_TIMEOUT))
	if err != nil {
		return nil, fmt.Errorf("%s is not a duration: %w", config.LLM_TIMEOUT, err)
	}
	model := config.GetSystemSettingString(config.LLM_MODEL)
	if config.GetSystemSettingString(config.LLM_API_KEY) == "" {
		slog.Warn("OFLOW_LLM_API_KEY is not set, worker calls will likely be rejected")
	}
	client := workers.NewOpenAIChatClient(
		config.GetSystemSettingString(config.LLM_BASE_URL),
		model,
		config.GetSystemSettingString(config.LLM_API_KEY),
		timeout,
	)
	return workers.NewDefaultRegistry(client, workers.RegistryOptions{Model: model}), nil
}

// Run serves the HTTP API until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{Addr: a.Addr, Handler: a.Router}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", a.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("HTTP server failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *App) Close() error {
	return a.DB.Close()
}

// OpenDatabase connects to the database named by OFLOW_DATABASE_TYPE and
// applies the embedded migrations.
func OpenDatabase() (*sql.DB, error) {
	switch databaseType := config.GetSystemSettingString(config.DATABASE_TYPE); databaseType {
	case config.DATABASE_TYPE_POSTGRES:
		return setupPostgresDatabase()
	case config.DATABASE_TYPE_SQLLITE:
		return setupSqlLiteDatabase()
	case config.DATABASE_TYPE_MYSQL:
		return setupMysqlDatabase()
	default:
		return nil, fmt.Errorf("OFLOW_DATABASE_TYPE must be one of POSTGRES, MYSQL, SQLLITE, got %q", databaseType)
	}
}

func setupPostgresDatabase() (*sql.DB, error) {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		return nil, errors.New("OFLOW_DATABASE_URL must be set when using the POSTGRES database type")
	}
	slog.Info("Using Postgres database")
	slog.Info("Running migrations")
	if err := RunMigrations(config.DATABASE_TYPE_POSTGRES, dbURL); err != nil {
		return nil, fmt.Errorf("db migration failed: %w", err)
	}
	slog.Info("Opening Postgres database")
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	return db, nil
}

func setupSqlLiteDatabase() (*sql.DB, error) {
	fileName := config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
	if fileName == "" {
		return nil, errors.New("OFLOW_DATABASE_SQLLITE_FILE_NAME must be set")
	}
	slog.Info("Using SQLite database", "file", fileName)
	slog.Info("Running migrations")
	if err := RunMigrations(config.DATABASE_TYPE_SQLLITE, "sqlite3://"+fileName); err != nil {
		return nil, fmt.Errorf("db migration failed: %w", err)
	}
	slog.Info("Opening SQLite database")
	db, err := sql.Open("sqlite3", fileName+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite DB: %w", err)
	}
	// one writer at a time; concurrent writers only produce "database is locked"
	db.SetMaxOpenConns(1)
	return db, nil
}

func setupMysqlDatabase() (*sql.DB, error) {
	dbURL := config.GetSystemSettingString(config.DATABASE_URL)
	if dbURL == "" {
		return nil, errors.New("OFLOW_DATABASE_URL must be set when using the MYSQL database type")
	}
	if !strings.Contains(dbURL, "parseTime=true") {
		return nil, errors.New("OFLOW_DATABASE_URL must contain 'parseTime=true' for MySQL")
	}
	if !strings.HasPrefix(dbURL, "mysql://") {
		return nil, errors.New("OFLOW_DATABASE_URL must start with 'mysql://' for MySQL")
	}

	slog.Info("Using MySQL database")
	slog.Info("Running migrations")
	if err := RunMigrations(config.DATABASE_TYPE_MYSQL, dbURL); err != nil {
		return nil, fmt.Errorf("db migration failed: %w", err)
	}
	slog.Info("Opening MySQL database")
	db, err := sql.Open("mysql", strings.TrimPrefix(dbURL, "mysql://"))
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	return db, nil
}

var migrationDirs = map[string]string{
	config.DATABASE_TYPE_POSTGRES: "postgres",
	config.DATABASE_TYPE_MYSQL:    "mysql",
	config.DATABASE_TYPE_SQLLITE:  "sqlite3",
}

// RunMigrations applies the embedded migrations of databaseType to dbURL.
// It is a no-op when the schema is already current.
func RunMigrations(databaseType, dbURL string) error {
	dir, ok := migrationDirs[databaseType]
	if !ok {
		return fmt.Errorf("no migrations for database type %q", databaseType)
	}
	sub, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// SetupLogger installs a tint handler on the default slog logger. Unknown
// levels fall back to info.
func SetupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.RFC3339Nano,
		}),
	))
}

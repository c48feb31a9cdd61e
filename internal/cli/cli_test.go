package cli

import (
	"bytes"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/internal/engine"
	"github.com/RealZimboGuy/onboardflow/internal/repository"
	"github.com/RealZimboGuy/onboardflow/internal/workers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

type testEnv struct {
	app   *App
	cases *repository.CaseRepository
	users *repository.UserRepository
}

// newTestEnv wires an App against a migrated SQLite file in a temp dir.
func newTestEnv(t *testing.T, reg *workers.Registry) *testEnv {
	t.Helper()
	config.Set(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)

	file := filepath.Join(t.TempDir(), "cli.db")
	require.NoError(t, onboardflow.RunMigrations(config.DATABASE_TYPE_SQLLITE, "sqlite3://"+file))
	db, err := sql.Open("sqlite3", file)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := core.FixedClock{At: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	cases := repository.NewCaseRepository(db, clock)
	actions := repository.NewCaseActionRepository(db, clock)
	users := repository.NewUserRepository(db, clock)
	executor := engine.NewStepExecutor(reg, workers.LogSender{}, engine.WithClock(clock))
	manager := engine.NewCaseManager(cases, actions, executor, engine.NewReviewGate(reg, clock), clock)

	return &testEnv{
		app:   &App{Manager: manager, Users: users},
		cases: cases,
		users: users,
	}
}

func (e *testEnv) run(args ...string) (string, error) {
	root := NewRootCommand(e.app)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var manualArgs = []string{
	"case", "intake",
	"--business-name", "Acme Widgets LLC",
	"--industry", "retail",
	"--owner", "Dana Reyes",
	"--email", "dana@acme.test",
	"--revenue", "1000000",
	"--net-income", "200000",
	"--debt", "100000",
	"--assets", "500000",
	"--attest",
}

func TestCaseIntake(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantStatus models.CaseStatus
	}{
		{
			name:       "manual form with matching signature",
			args:       append(append([]string{}, manualArgs...), "--signed-for", "acme widgets llc"),
			wantStatus: models.StatusKYCChecks,
		},
		{
			name:       "manual form with mismatched signature",
			args:       append(append([]string{}, manualArgs...), "--signed-for", "Someone Else"),
			wantStatus: models.StatusAwaitingReview,
		},
		{
			name:       "document upload",
			args:       []string{"case", "intake", "--business-name", "Acme Widgets LLC", "--document", "./acme.pdf"},
			wantStatus: models.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, workers.NewRegistry())

			out, err := env.run(tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, string(tt.wantStatus))

			saved, err := env.cases.FindByID(1)
			require.NoError(t, err)
			require.NotNil(t, saved)
			assert.Equal(t, tt.wantStatus, saved.Status)
		})
	}
}

func TestCaseIntake_Invalid(t *testing.T) {
	env := newTestEnv(t, workers.NewRegistry())

	_, err := env.run("case", "intake", "--business-name", "Acme Widgets LLC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidIntake))
}

func TestCaseStep_Advances(t *testing.T) {
	reg := workers.NewRegistry().
		Register(workers.KindScreening, workers.Static(`{"summary":{"findings":"clear"},"recommendation":{"next_state":"CREDIT_ANALYSIS","reason":"ok"}}`))
	env := newTestEnv(t, reg)
	_, err := env.run(append(append([]string{}, manualArgs...), "--signed-for", "Acme Widgets LLC")...)
	require.NoError(t, err)

	out, err := env.run("case", "step", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "KYC_CHECKS -> CREDIT_ANALYSIS")

	out, err = env.run("case", "log", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "INTAKE")
	assert.Contains(t, out, "TRANSITION")
}

func TestCaseStep_FailureExitsWithOne(t *testing.T) {
	reg := workers.NewRegistry().
		Register(workers.KindScreening, workers.Static("I could not decide."))
	env := newTestEnv(t, reg)
	_, err := env.run(append(append([]string{}, manualArgs...), "--signed-for", "Acme Widgets LLC")...)
	require.NoError(t, err)

	out, err := env.run("case", "step", "1")
	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok, "error should be an ExitError")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "ERROR:")

	saved, err := env.cases.FindByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusKYCChecks, saved.Status)
}

func TestCaseStep_Gated(t *testing.T) {
	env := newTestEnv(t, workers.NewRegistry())
	_, err := env.run(append(append([]string{}, manualArgs...), "--signed-for", "Someone Else")...)
	require.NoError(t, err)

	_, err = env.run("case", "step", "1")
	require.Error(t, err)
	_, isExit := IsExitError(err)
	assert.True(t, isExit)
}

func TestCaseDigestAndReview(t *testing.T) {
	reg := workers.NewRegistry().
		Register(workers.KindSummarization, workers.Static("Signature does not match the business name."))
	env := newTestEnv(t, reg)
	_, err := env.run(append(append([]string{}, manualArgs...), "--signed-for", "Someone Else")...)
	require.NoError(t, err)

	out, err := env.run("case", "digest", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Signature does not match the business name.")
	assert.Contains(t, out, "CONTINUE, REJECT")

	_, err = env.run("case", "review", "1", "--decision", "CONTINUE", "--justification", " ", "--analyst", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrJustificationRequired))

	_, err = env.run("case", "review", "1", "--decision", "FINAL_APPROVE", "--justification", "ok", "--analyst", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrDecisionNotOffered))

	out, err = env.run("case", "review", "1", "--decision", "CONTINUE", "--justification", "Registry confirms the owner", "--analyst", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, string(models.StatusKYCChecks))

	saved, err := env.cases.FindByID(1)
	require.NoError(t, err)
	require.NotNil(t, saved.LastReview)
	assert.Equal(t, "alice", saved.LastReview.Analyst)
}

func TestCaseShow_NotFound(t *testing.T) {
	env := newTestEnv(t, workers.NewRegistry())

	_, err := env.run("case", "show", "42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrCaseNotFound))

	_, err = env.run("case", "show", "abc")
	require.Error(t, err)
}

func TestCaseList(t *testing.T) {
	env := newTestEnv(t, workers.NewRegistry())
	_, err := env.run(append(append([]string{}, manualArgs...), "--signed-for", "Acme Widgets LLC")...)
	require.NoError(t, err)
	_, err = env.run("case", "intake", "--business-name", "Globex", "--document", "./globex.pdf")
	require.NoError(t, err)

	out, err := env.run("case", "list", "--status", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Globex")
	assert.NotContains(t, out, "Acme")

	_, err = env.run("case", "list", "--status", "nope")
	require.Error(t, err)
}

func TestUserCreate(t *testing.T) {
	env := newTestEnv(t, workers.NewRegistry())

	out, err := env.run("user", "create", "--username", "alice", "--password", "s3cret", "--api-key", "k1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")

	u, err := env.users.FindByApiKey("k1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.NotEqual(t, "s3cret", u.Password)

	_, err = env.run("user", "create", "--username", "alice", "--password", "other")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"))
}

func TestRootCommand_ConnectsLazily(t *testing.T) {
	connected := 0
	app := &App{Connect: func(app *App) error {
		connected++
		return errors.New("no database")
	}}
	root := NewRootCommand(app)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	root.SetArgs([]string{"help"})
	require.NoError(t, root.Execute())
	assert.Equal(t, 0, connected)

	root.SetArgs([]string{"case", "show", "1"})
	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, "no database", err.Error())
	assert.Equal(t, 1, connected)
}

func TestRootCommand_SettingFlags(t *testing.T) {
	var seen string
	app := &App{Connect: func(app *App) error {
		seen = config.GetSystemSettingString(config.DATABASE_SQLLITE_FILE_NAME)
		return errors.New("stop")
	}}
	root := NewRootCommand(app)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"case", "show", "1", "--sqlite-file", "/tmp/flag.db"})

	require.Error(t, root.Execute())
	assert.Equal(t, "/tmp/flag.db", seen)
}

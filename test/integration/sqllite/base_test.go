package sqllite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow"
)

var portBase int32 = 9018 // starting port number (can be anything safe)

func nextPort() int {
	return int(atomic.AddInt32(&portBase, 1))
}

func runTestWithSetup(t *testing.T, testFunc func(t *testing.T, port int)) {
	port := nextPort()
	filename := filepath.Join(t.TempDir(), fmt.Sprintf("onboardflow-test-%d.db", port))
	SetupSqlLiteTestInstance(t, filename)
	testFunc(t, port)
}

func SetupSqlLiteTestInstance(t *testing.T, filename string) {
	t.Setenv("OFLOW_DATABASE_TYPE", config.DATABASE_TYPE_SQLLITE)
	t.Setenv("OFLOW_DATABASE_SQLLITE_FILE_NAME", filename)
	t.Setenv("OFLOW_UPLOAD_DIR", t.TempDir())
}

// openMigrated applies the embedded migrations and opens the file directly.
func openMigrated(t *testing.T) *sql.DB {
	db, err := onboardflow.OpenDatabase()
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", os.Getenv("OFLOW_DATABASE_SQLLITE_FILE_NAME"), err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

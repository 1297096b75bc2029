package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database"
)

// testDatabase returns a migrated database path and an open handle for
// assertions. Commands open their own connection to the same file.
func testDatabase(t *testing.T) (string, *gorm.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "librarian.db")
	db, err := database.NewSilentDatabase(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return path, db.DB
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

const sampleCSV = `title,author,isbn,publisher,publication_year,copies
The Go Programming Language,Alan Donovan,978-0134190440,Addison-Wesley,2015,3
Designing Data-Intensive Applications,Martin Kleppmann,9781449373320,O'Reilly,2017,
Reference Only,Anonymous,9780000000001,,,0
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseBooksCSV(t *testing.T) {
	books, err := parseBooksCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, books, 3)

	assert.Equal(t, "The Go Programming Language", books[0].Title)
	assert.Equal(t, "Addison-Wesley", books[0].Publisher)
	assert.Equal(t, 2015, books[0].PublicationYear)
	assert.Equal(t, 3, books[0].Copies)
	assert.Equal(t, 1, books[1].Copies, "missing copies defaults to one")
	assert.Equal(t, 0, books[2].Copies)

	t.Run("columns in any order", func(t *testing.T) {
		books, err := parseBooksCSV(strings.NewReader("ISBN, Author, Title\n9780000000002,Someone,Something\n"))
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Something", books[0].Title)
		assert.Equal(t, "9780000000002", books[0].ISBN)
	})

	errorCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty file", "", "empty"},
		{"missing column", "title,author\nA,B\n", `"isbn"`},
		{"blank required field", "title,author,isbn\n,B,123\n", "line 2"},
		{"bad year", "title,author,isbn,publication_year\nA,B,123,soon\n", "publication_year"},
		{"negative copies", "title,author,isbn,copies\nA,B,123,-1\n", "copies"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBooksCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestImportBooksCommand_Run(t *testing.T) {
	path, db := testDatabase(t)
	out := &bytes.Buffer{}
	cmd := &ImportBooksCommand{FilePath: writeCSV(t, sampleCSV), DatabasePath: path, Out: out}

	require.NoError(t, cmd.Run())
	assert.Contains(t, out.String(), "Imported: 3, skipped: 0, failed: 0")

	var book entities.Book
	require.NoError(t, db.Where("title = ?", "The Go Programming Language").First(&book).Error)
	assert.Equal(t, 3, book.TotalCopies)
	assert.Equal(t, 3, book.AvailableCopies)
	assert.True(t, book.Active)

	var events int64
	require.NoError(t, db.Model(&entities.AuditEvent{}).Where("action = ?", "book_create").Count(&events).Error)
	assert.Equal(t, int64(3), events)

	t.Run("second run skips catalogued isbns", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cmd.Run())
		assert.Contains(t, out.String(), "Imported: 0, skipped: 3, failed: 0")

		var count int64
		require.NoError(t, db.Model(&entities.Book{}).Count(&count).Error)
		assert.Equal(t, int64(3), count)
	})
}

func TestImportBooksCommand_DryRun(t *testing.T) {
	path, db := testDatabase(t)
	out := &bytes.Buffer{}
	cmd := &ImportBooksCommand{FilePath: writeCSV(t, sampleCSV), DatabasePath: path, DryRun: true, Out: out}

	require.NoError(t, cmd.Run())
	assert.Contains(t, out.String(), "DRY RUN")

	var count int64
	require.NoError(t, db.Model(&entities.Book{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportBooksCommand_ParseFlags(t *testing.T) {
	cmd := NewImportBooksCommand()
	require.Error(t, cmd.ParseFlags(nil))

	cmd = NewImportBooksCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-file", "books.csv", "-dry-run"}))
	assert.Equal(t, "books.csv", cmd.FilePath)
	assert.True(t, cmd.DryRun)
}

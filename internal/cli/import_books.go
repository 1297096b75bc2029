package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/lending"
)

// operator is the actor used for catalog changes made from the command line.
var operator = lending.Actor{UserID: 0, Role: entities.UserRoleAdmin}

var requiredColumns = []string{"title", "author", "isbn"}

// ImportBooksCommand loads catalog entries from a CSV file with a header row.
// Recognized columns: title, author, isbn (required), publisher,
// publication_year, copies.
type ImportBooksCommand struct {
	FilePath     string
	DatabasePath string
	Verbose      bool
	DryRun       bool

	Out io.Writer
}

// ImportSummary counts the outcome of an import.
type ImportSummary struct {
	Imported int
	Skipped  int
	Failed   int
}

func NewImportBooksCommand() *ImportBooksCommand {
	return &ImportBooksCommand{Out: os.Stdout}
}

func (cmd *ImportBooksCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import-books", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the CSV file (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every row")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Validate the file without making changes")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import-books -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import catalog entries from CSV. The header row names the columns:\n")
		fmt.Fprintf(os.Stderr, "  title,author,isbn,publisher,publication_year,copies\n")
		fmt.Fprintf(os.Stderr, "Books whose ISBN is already catalogued are skipped.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}

	return nil
}

func (cmd *ImportBooksCommand) Run() error {
	file, err := os.Open(cmd.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := parseBooksCSV(file)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Out, "Found %d books in %s\n", len(rows), cmd.FilePath)

	if cmd.DryRun {
		fmt.Fprintln(cmd.Out, "DRY RUN MODE - No changes will be made")
		for _, row := range rows {
			fmt.Fprintf(cmd.Out, "  %s: %q by %s (%d copies)\n", row.ISBN, row.Title, row.Author, row.Copies)
		}
		return nil
	}

	db, err := database.NewSilentDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Wait()

	summary := cmd.importRows(context.Background(), lending.NewCatalog(db.DB, auditService), rows)

	fmt.Fprintf(cmd.Out, "\nImported: %d, skipped: %d, failed: %d\n", summary.Imported, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d rows failed to import", summary.Failed)
	}
	return nil
}

func (cmd *ImportBooksCommand) importRows(ctx context.Context, catalog *lending.Catalog, rows []lending.NewBook) ImportSummary {
	var summary ImportSummary
	for _, row := range rows {
		book, err := catalog.AddBook(ctx, operator, row)
		switch {
		case errors.Is(err, lending.ErrISBNTaken):
			summary.Skipped++
			if cmd.Verbose {
				fmt.Fprintf(cmd.Out, "  skip %s: already catalogued\n", row.ISBN)
			}
		case err != nil:
			summary.Failed++
			fmt.Fprintf(cmd.Out, "  fail %s: %v\n", row.ISBN, err)
		default:
			summary.Imported++
			if cmd.Verbose {
				fmt.Fprintf(cmd.Out, "  add  %s: %q (id %d)\n", book.ISBN, book.Title, book.ID)
			}
		}
	}
	return summary
}

// parseBooksCSV reads and validates every row before anything is written,
// so that a malformed file imports nothing.
func parseBooksCSV(r io.Reader) ([]lending.NewBook, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := columns[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var books []lending.NewBook
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		book := lending.NewBook{
			BookDetails: lending.BookDetails{
				Title:     field(record, "title"),
				Author:    field(record, "author"),
				ISBN:      field(record, "isbn"),
				Publisher: field(record, "publisher"),
			},
			Copies: 1,
		}
		if book.Title == "" || book.Author == "" || book.ISBN == "" {
			return nil, fmt.Errorf("line %d: title, author and isbn are required", line)
		}
		if raw := field(record, "publication_year"); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil || year < 0 {
				return nil, fmt.Errorf("line %d: invalid publication_year %q", line, raw)
			}
			book.PublicationYear = year
		}
		if raw := field(record, "copies"); raw != "" {
			copies, err := strconv.Atoi(raw)
			if err != nil || copies < 0 {
				return nil, fmt.Errorf("line %d: invalid copies %q", line, raw)
			}
			book.Copies = copies
		}
		books = append(books, book)
	}

	return books, nil
}

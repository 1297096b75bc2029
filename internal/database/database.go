package database

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarian/internal/entities"
)

// ErrDuplicateKey is returned when an insert violates a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

type Database struct {
	DB *gorm.DB
}

// Connection options for the SQLite driver. Write transactions take the
// database lock up front (_txlock=immediate) so that concurrent borrow and
// return requests queue behind each other instead of failing mid-transaction.
const connectionOptions = "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on&_journal_mode=WAL"

func NewDatabase(dbPath string) (*Database, error) {
	return open(dbPath, logger.Default.LogMode(logger.Warn))
}

// NewSilentDatabase opens the database without SQL logging (tests, CLI).
func NewSilentDatabase(dbPath string) (*Database, error) {
	return open(dbPath, logger.Default.LogMode(logger.Silent))
}

func open(dbPath string, l logger.Interface) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(buildDSN(dbPath)), &gorm.Config{
		Logger:         l,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.Loan{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// At most one open loan per (user, book). SQLite does not accept bound
	// parameters in a partial index, so the status is inlined.
	err = db.Exec(fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_open_user_book
		ON loans(user_id, book_id) WHERE status = '%s'`, entities.LoanStatusBorrowed)).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create loan index: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func buildDSN(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + connectionOptions
	}
	return dbPath + "?" + connectionOptions
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the underlying connection is usable.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// gorm translates most of them to gorm.ErrDuplicatedKey; partial indexes
// created outside AutoMigrate are matched on the driver message.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, loan index
//	├── books/           # Book inventory and atomic copy bookkeeping
//	├── loans/           # Loan ledger and guarded status transitions
//	├── users/           # User accounts
//	└── audit/           # Audit event storage
//
// # Transactions
//
// Repositories wrap whatever *gorm.DB they are given, so a service can run
// several of them in one transaction:
//
//	err := db.DB.Transaction(func(tx *gorm.DB) error {
//		inventory := books.NewRepository(tx)
//		ledger := loans.NewRepository(tx)
//		...
//	})
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add compile-time interface checks in internal/interfaces
package database

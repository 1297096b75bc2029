// Command generate_demo creates a demo database with a catalog of public domain
// books, a few accounts and loans in every state.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/lending"
)

const (
	defaultDemoDatabasePath = "./demo/demo.db"
	demoPassword            = "demo-password-123"
)

type demoUser struct {
	Username string
	Role     entities.UserRole
}

// demoLoan describes a loan relative to now: BorrowedDaysAgo in the past, and
// what happened to it since.
type demoLoan struct {
	User            string
	ISBN            string
	BorrowedDaysAgo int
	Returned        bool
	Lost            bool
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Wait()

	accounts := createUsers(db)
	admin := accounts["admin"]

	catalog := lending.NewCatalog(db.DB, auditService)
	books := make(map[string]*entities.Book)
	for _, in := range getPublicDomainBooks() {
		book, err := catalog.AddBook(context.Background(), admin, in)
		if err != nil {
			log.Printf("Failed to add %s: %v", in.Title, err)
			continue
		}
		books[book.ISBN] = book
		log.Printf("Added: %s by %s (%d copies)", book.Title, book.Author, book.TotalCopies)
	}

	createLoans(db, auditService, accounts, books)

	log.Printf("Demo database generated successfully! Log in as admin, alice or bob with password %q", demoPassword)
}

func createUsers(db *database.Database) map[string]lending.Actor {
	cfg := config.NewConfig().Auth
	cfg.BcryptCost = bcrypt.DefaultCost
	service := auth.NewService(users.NewRepository(db.DB), nil, cfg)

	accounts := make(map[string]lending.Actor)
	for _, u := range []demoUser{
		{"admin", entities.UserRoleAdmin},
		{"alice", entities.UserRoleMember},
		{"bob", entities.UserRoleMember},
	} {
		user, err := service.CreateUser(u.Username, u.Username+"@demo.example", demoPassword, u.Role)
		if err != nil {
			log.Fatalf("Failed to create user %s: %v", u.Username, err)
		}
		accounts[u.Username] = lending.Actor{UserID: user.ID, Role: user.Role}
	}
	return accounts
}

// createLoans replays each loan with the clock set to its borrow date, so that
// due dates and fines come out the way the server would compute them.
func createLoans(db *database.Database, auditor lending.Auditor, accounts map[string]lending.Actor, books map[string]*entities.Book) {
	now := time.Now().UTC()
	cfg := config.NewConfig().Lending

	for _, planned := range getDemoLoans() {
		book, ok := books[planned.ISBN]
		if !ok {
			continue
		}
		borrowedAt := now.AddDate(0, 0, -planned.BorrowedDaysAgo)
		clock := func() time.Time { return borrowedAt }
		svc := lending.NewService(db.DB, cfg, lending.WithClock(clock), lending.WithAuditor(auditor))

		actor := accounts[planned.User]
		loan, err := svc.Borrow(context.Background(), actor, lending.BorrowRequest{BookID: book.ID})
		if err != nil {
			log.Printf("Failed to lend %s to %s: %v", book.Title, planned.User, err)
			continue
		}

		// Later transitions happen "today".
		borrowedAt = now
		switch {
		case planned.Returned:
			_, err = svc.Return(context.Background(), actor, loan.ID)
		case planned.Lost:
			_, err = svc.MarkLost(context.Background(), accounts["admin"], loan.ID)
		}
		if err != nil {
			log.Printf("Failed to update loan %d: %v", loan.ID, err)
			continue
		}
		log.Printf("Loan: %s -> %s (borrowed %d days ago)", book.Title, planned.User, planned.BorrowedDaysAgo)
	}
}

func getDemoLoans() []demoLoan {
	return []demoLoan{
		{User: "alice", ISBN: "9780141439518", BorrowedDaysAgo: 3},
		{User: "alice", ISBN: "9780486282114", BorrowedDaysAgo: 20},
		{User: "alice", ISBN: "9780141441146", BorrowedDaysAgo: 30, Returned: true},
		{User: "bob", ISBN: "9780486282114", BorrowedDaysAgo: 40},
		{User: "bob", ISBN: "9780140449136", BorrowedDaysAgo: 10},
		{User: "bob", ISBN: "9780451528551", BorrowedDaysAgo: 60, Lost: true},
	}
}

func getPublicDomainBooks() []lending.NewBook {
	book := func(title, author, isbn, publisher string, year, copies int) lending.NewBook {
		return lending.NewBook{
			BookDetails: lending.BookDetails{
				Title:           title,
				Author:          author,
				ISBN:            isbn,
				Publisher:       publisher,
				PublicationYear: year,
			},
			Copies: copies,
		}
	}

	return []lending.NewBook{
		book("Pride and Prejudice", "Jane Austen", "9780141439518", "Penguin Classics", 1813, 3),
		book("Frankenstein", "Mary Shelley", "9780486282114", "Dover Publications", 1818, 2),
		book("Jane Eyre", "Charlotte Brontë", "9780141441146", "Penguin Classics", 1847, 2),
		book("Crime and Punishment", "Fyodor Dostoevsky", "9780140449136", "Penguin Classics", 1866, 1),
		book("The Time Machine", "H. G. Wells", "9780451528551", "Signet Classics", 1895, 2),
		book("Meditations", "Marcus Aurelius", "9780140449334", "Penguin Classics", 180, 1),
		book("The Origin of Species", "Charles Darwin", "9780451529060", "Signet Classics", 1859, 1),
		book("Moby-Dick", "Herman Melville", "9780142437247", "Penguin Classics", 1851, 2),
		book("The Republic", "Plato", "9780140455113", "Penguin Classics", 0, 1),
	}
}

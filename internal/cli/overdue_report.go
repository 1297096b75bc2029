package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/lending"
)

// OverdueReportCommand prints every open loan past its due date together with
// the fine owed as of now. It reads the lending rules from the environment,
// the same way the server does.
type OverdueReportCommand struct {
	DatabasePath string
	Limit        int

	Out io.Writer
	// Options are passed to the lending service (tests pin the clock).
	Options []lending.Option
}

func NewOverdueReportCommand() *OverdueReportCommand {
	return &OverdueReportCommand{Out: os.Stdout}
}

func (cmd *OverdueReportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("overdue-report", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.IntVar(&cmd.Limit, "limit", 0, "Maximum number of loans to list (0 = all)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s overdue-report [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List overdue loans, oldest due date first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Limit < 0 {
		return fmt.Errorf("-limit must not be negative")
	}

	return nil
}

func (cmd *OverdueReportCommand) Run() error {
	db, err := database.NewSilentDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	service := lending.NewService(db.DB, config.NewConfig().Lending, cmd.Options...)
	loans, err := service.ListOverdue(context.Background(), cmd.Limit)
	if err != nil {
		return err
	}

	if len(loans) == 0 {
		fmt.Fprintln(cmd.Out, "No overdue loans.")
		return nil
	}

	now := service.Now()
	policy := service.Policy()
	total := 0

	w := tabwriter.NewWriter(cmd.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOAN\tUSER\tBOOK\tDUE\tDAYS\tFINE")
	for i := range loans {
		loan := &loans[i]
		fine := policy.FineDue(loan, now)
		total += fine
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
			loan.ID,
			loan.User.Username,
			loan.Book.Title,
			loan.DueAt.Format(time.DateOnly),
			lending.DaysOverdue(loan, now),
			fine,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Out, "\n%d overdue loans, %d in fines outstanding\n", len(loans), total)
	return nil
}

package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
)

// CreateUserCommand creates an account directly in the database. It is the
// way to bootstrap an administrator on a server that is not reachable yet.
type CreateUserCommand struct {
	DatabasePath  string
	Username      string
	Email         string
	Role          string
	PasswordStdin bool
	// BcryptCost overrides AUTH_BCRYPT_COST when positive.
	BcryptCost int

	// In and Out default to the process streams.
	In  io.Reader
	Out io.Writer
	// ReadPassword prompts for a password without echo.
	ReadPassword func(prompt string) (string, error)
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{
		In:           os.Stdin,
		Out:          os.Stdout,
		ReadPassword: readTerminalPassword,
	}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.Username, "username", "", "Username (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address (required)")
	fs.StringVar(&cmd.Role, "role", string(entities.UserRoleMember), "Role: admin or member")
	fs.BoolVar(&cmd.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin instead of prompting")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user -username <name> -email <address> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a user account. The password is prompted for without echo.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Create the first administrator:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -username admin -email admin@example.com -role admin\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Scripted creation:\n")
		fmt.Fprintf(os.Stderr, "  echo \"$PASSWORD\" | %s create-user -username alice -email alice@example.com -password-stdin\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Username == "" {
		return fmt.Errorf("required flag -username not provided")
	}
	if cmd.Email == "" {
		return fmt.Errorf("required flag -email not provided")
	}
	if !entities.UserRole(cmd.Role).IsValid() {
		return fmt.Errorf("invalid role %q: must be admin or member", cmd.Role)
	}

	return nil
}

func (cmd *CreateUserCommand) Run() error {
	password, err := cmd.password()
	if err != nil {
		return err
	}

	db, err := database.NewSilentDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := config.NewConfig().Auth
	if cmd.BcryptCost > 0 {
		cfg.BcryptCost = cmd.BcryptCost
	}
	service := auth.NewService(users.NewRepository(db.DB), nil, cfg)

	user, err := service.CreateUser(cmd.Username, cmd.Email, password, entities.UserRole(cmd.Role))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.Out, "Created %s %q (id %d)\n", user.Role, user.Username, user.ID)
	return nil
}

func (cmd *CreateUserCommand) password() (string, error) {
	if cmd.PasswordStdin {
		line, err := bufio.NewReader(cmd.In).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	password, err := cmd.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := cmd.ReadPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func readTerminalPassword(prompt string) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; use -password-stdin")
	}
	fmt.Fprint(os.Stderr, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"console/cmd/identity"
	"console/cmd/internal/app"

	paseto "aidanwoods.dev/go-paseto"
	"golang.org/x/term"
)

const usage = `usage: console <command> [flags]

commands:
  serve          run the HTTP server (default)
  hash-password  read a password from stdin and print its Argon2id hash
  add-user       add an admin to the users file; password is read from stdin
  gen-key        print a fresh PASETO v4 secret key as hex
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return app.Run()
	case "hash-password":
		return hashPassword(stdin, stdout)
	case "add-user":
		return addUser(args, stdin, stdout)
	case "gen-key":
		_, err := fmt.Fprintln(stdout, paseto.NewV4AsymmetricSecretKey().ExportHex())
		return err
	case "help", "-h", "--help":
		_, err := io.WriteString(stdout, usage)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func hashPassword(stdin io.Reader, stdout io.Writer) error {
	pw, err := identity.PasswordsFromEnv()
	if err != nil {
		return err
	}
	plain, err := readSecret(stdin, os.Stderr)
	if err != nil {
		return err
	}
	hash, err := pw.Hash(plain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func addUser(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", app.EnvString("CONSOLE_USERS_FILE", "data/users.json"), "users file")
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "display name")
	image := fs.String("image", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("add-user: -email is required")
	}

	pw, err := identity.PasswordsFromEnv()
	if err != nil {
		return err
	}
	plain, err := readSecret(stdin, os.Stderr)
	if err != nil {
		return err
	}
	hash, err := pw.Hash(plain)
	if err != nil {
		return err
	}
	id, err := identity.NewUserID(time.Now().UTC())
	if err != nil {
		return err
	}

	if err := identity.AddUser(*file, identity.User{
		ID:       id,
		Name:     *name,
		Email:    *email,
		Image:    *image,
		Password: hash,
	}); err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, id)
	return err
}

// readSecret prompts without echo when r is a terminal and otherwise reads
// the first line of r without its line ending.
func readSecret(r io.Reader, prompt io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = io.WriteString(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = io.WriteString(prompt, "\n")
		if err != nil {
			return "", err
		}
		if len(b) == 0 {
			return "", errors.New("empty password")
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/services/backend"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// storeFunc opens the portal database on first use; export does not need it.
type storeFunc func(ctx context.Context) (*sql.DB, enrollment.Journal, error)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	client *backend.Client
	store  storeFunc
	mailer core.EmailService
	stdout io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, ...) on the portal database")
	fmt.Fprintln(cli.stdout, "  sweep [-older-than DURATION] - roll back checkouts abandoned in awaiting-payment")
	fmt.Fprintln(cli.stdout, "  export -username USERNAME|EMAIL [-dir DIR] [-mail] - export every user as an admin; the password will be prompted next")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	sweepCmd := flag.NewFlagSet("sweep", flag.ContinueOnError)
	sweepOlderThan := sweepCmd.Duration("older-than", 0, "Age of the checkouts to roll back (defaults to the configured abandon delay).")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportUname := exportCmd.String("username", "", "The admin's username or email. The password will be prompted next.")
	exportDir := exportCmd.String("dir", ".", "Directory to write the export to.")
	exportMail := exportCmd.Bool("mail", false, "Also email the export to the admin.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "sweep":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.sweep(ctx, *sweepOlderThan)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportUname == "" {
			exportCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.stdout, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.stdout)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportUname, string(pwd), *exportDir, *exportMail)

	default:
		cli.printUsage()
		return errHelp
	}
}

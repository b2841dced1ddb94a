package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/tasksphere/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	usrSvc *user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, ...)")
	fmt.Println("  superadmin -email EMAIL [-revoke] - grant (or revoke) the super admin rights of a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	superAdminCmd := flag.NewFlagSet("superadmin", flag.ContinueOnError)
	superAdminEmail := superAdminCmd.String("email", "", "The email of a user who signed in at least once.")
	superAdminRevoke := superAdminCmd.Bool("revoke", false, "Revoke the rights instead of granting them.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "superadmin":
		if err := superAdminCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *superAdminEmail == "" {
			superAdminCmd.Usage()
			return errHelp
		}
		return cli.setSuperAdmin(*superAdminEmail, !*superAdminRevoke)
	default:
		cli.printUsage()
		return errHelp
	}
}

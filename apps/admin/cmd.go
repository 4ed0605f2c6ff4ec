package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	tx         core.Transactor
	usrSvc     user.Service
	profileSvc *profile.Service
	feeSvc     *fee.Service
	mailSvc    core.EmailService
	out        io.Writer
}

// run executes the command line args (program name included).
// A fresh command tree is built on each call so that flags never leak between runs.
func (cli *commandLine) run(args []string) error {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Muziki administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(
		cli.migrateCmd(),
		cli.resetPasswordCmd(),
		cli.addUserCmd(),
		cli.remindFeesCmd(),
	)

	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

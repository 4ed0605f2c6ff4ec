package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
)

type addUserOpts struct {
	name, uname, email       string
	admin, teacher, student bool
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var opts addUserOpts
	cmd := &cobra.Command{
		Use:   "adduser --username USERNAME --email EMAIL [--name NAME] [--admin] [--teacher] [--student]",
		Short: "Create a user, or update the one with the same username or email. The password is prompted next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.uname == "" && opts.email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), opts, pwd)
			if err != nil {
				return err
			}
			cmd.Printf("user %s saved\n", usr.ID)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.name, "name", "", "the user's full name (defaults to the username)")
	flags.StringVarP(&opts.uname, "username", "u", "", "the user's username")
	flags.StringVarP(&opts.email, "email", "e", "", "the user's email")
	flags.BoolVar(&opts.admin, "admin", false, "make the user an owner admin")
	flags.BoolVar(&opts.teacher, "teacher", false, "give the user the teacher role")
	flags.BoolVar(&opts.student, "student", false, "give the user the student role")
	return cmd
}

// addUser updates or creates a user.User, then syncs their profiles.
func (cli *commandLine) addUser(ctx context.Context, opts addUserOpts, pwd string) (user.User, error) {
	uname := core.CleanString(opts.uname, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)

	var usr user.User
	err := cli.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if usr, err = cli.findUser(ctx, uname, email); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{Username: uname, Email: email}
		}
		if name := core.CleanString(opts.name); name != "" {
			usr.Name = name
		} else if usr.Name == "" {
			usr.Name = uname
			if usr.Name == "" {
				usr.Name = email
			}
		}

		roles := usr.Roles
		if opts.admin {
			roles = addRole(roles, user.RoleAdminOwner)
		}
		if opts.teacher {
			roles = addRole(roles, user.RoleTeacher)
		}
		if opts.student {
			roles = addRole(roles, user.RoleStudent)
		}
		usr.Roles = roles
		usr.IsActive = true

		if err = user.ValidatePassword(pwd, usr); err != nil {
			return err
		}
		if err = usr.SetPassword(pwd); err != nil {
			return errors.Wrap(err, "setting password")
		}
		if usr, err = cli.usrSvc.UpdateOrCreate(ctx, usr); err != nil {
			return err
		}
		return cli.profileSvc.Sync(ctx, usr)
	})
	return usr, err
}

// findUser looks the user up by username first, then by email.
func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		return cli.usrSvc.GetByUsernameOrEmail(ctx, email)
	}
	return usr, err
}

func addRole(roles []string, role string) []string {
	for _, r := range roles {
		if r == role {
			return roles
		}
	}
	return append(roles, role)
}

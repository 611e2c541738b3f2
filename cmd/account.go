package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"golang.org/x/term"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Administer accounts",
}

var accountPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin flag to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setAdmin(args[0], true)
	},
}

var accountDemoteCmd = &cobra.Command{
	Use:   "demote <email>",
	Short: "Revoke the admin flag from an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return setAdmin(args[0], false)
	},
}

var accountSetPasswordCmd = &cobra.Command{
	Use:   "set-password <email>",
	Short: "Set an account password and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		ctx := context.Background()
		app, err := newCommandApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.accounts.SetPassword(ctx, args[0], password); err != nil {
			return accountCommandError(args[0], err)
		}
		fmt.Printf("password updated for %s\n", args[0])
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountPromoteCmd)
	accountCmd.AddCommand(accountDemoteCmd)
	accountCmd.AddCommand(accountSetPasswordCmd)
	rootCmd.AddCommand(accountCmd)
}

func newCommandApplication(ctx context.Context) (*application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApplication(ctx, cfg)
}

func setAdmin(email string, isAdmin bool) error {
	ctx := context.Background()
	app, err := newCommandApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	account, err := app.accounts.SetAdmin(ctx, email, isAdmin)
	if err != nil {
		return accountCommandError(email, err)
	}
	fmt.Printf("account_id: %d\n", account.ID)
	fmt.Printf("email: %s\n", account.Email)
	fmt.Printf("is_admin: %t\n", account.IsAdmin)
	return nil
}

func accountCommandError(email string, err error) error {
	if errors.Is(err, service.ErrAccountNotFound) {
		return fmt.Errorf("no account found for %q", email)
	}
	return err
}

func promptNewPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("set-password must be run from a terminal")
	}

	fmt.Print("New password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

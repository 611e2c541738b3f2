package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Maintain session and password reset tokens",
}

var tokensPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired session and password reset tokens",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()
		app, err := newCommandApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.accounts.PruneTokens(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d session token(s) and %d reset token(s)\n", result.Sessions, result.ResetTokens)
		return nil
	},
}

func init() {
	tokensCmd.AddCommand(tokensPruneCmd)
	rootCmd.AddCommand(tokensCmd)
}

package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

// ErrAuthDisabled is returned by token when no signing secret is configured
var ErrAuthDisabled = errors.New("API authentication is not configured")

// TokenIssuer signs API access tokens
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, time.Time, error)
}

func (app *App) tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			deps, err := app.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			if deps.Tokens == nil {
				return ErrAuthDisabled
			}
			token, expires, err := deps.Tokens.Issue(subject, ttl)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), [][]string{
				{"Subject", "Expires", "Token"},
				{subject, expires.UTC().Format(time.RFC3339), token},
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: auth.token_ttl)")
	return cmd
}

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/meschain/marketsync/internal/infrastructure/auth"
	"github.com/meschain/marketsync/internal/infrastructure/config"
)

var (
	tokenScopes []string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token for the reporting API",
	Long: `Token signs an API token with the configured JWT secret. Scopes are
sync:read for stats, logs and jobs, and sync:write for triggering jobs and
editing category mappings.`,
	Args: cobra.ExactArgs(1),
	RunE: issueToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringSliceVarP(&tokenScopes, "scope", "s", []string{auth.ScopeSyncRead}, "Granted scopes")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime; 0 uses jwt.access_token_expiration")
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	token, err := signToken(cfg.JWT, args[0], tokenScopes, tokenTTL)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), token, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, token.Token)
		return err
	})
}

func signToken(cfg config.JWTConfig, subject string, scopes []string, ttl time.Duration) (*auth.IssuedToken, error) {
	token, err := auth.NewJWTService(cfg).Issue(subject, scopes, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

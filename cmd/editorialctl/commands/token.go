package commands

import (
	"errors"
	"fmt"
	"time"

	"editorial/api/internal/auth"
	"editorial/api/internal/rbac"

	"github.com/spf13/cobra"
)

var (
	// Token flags
	tokenUserID int64
	tokenName   string
	tokenRole   string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token for development",
	Long: `Sign a bearer token with the configured JWT secret. Identity lives outside
the editorial API; this command is meant for local development and tests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID <= 0 {
			return errors.New("--user is required")
		}
		role := rbac.Normalize(tokenRole)
		if string(role) != tokenRole {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.AccessTTL
		}
		signed, err := auth.IssueToken([]byte(cfg.JWTSecret), auth.NewClaims(tokenUserID, tokenName, string(role), ttl))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "Numeric user id")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(rbac.RoleAuthor), "Role: viewer, author, reviewer or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to the configured access TTL)")
}

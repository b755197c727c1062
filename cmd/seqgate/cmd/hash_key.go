package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seqgate/seqgate/internal/domain/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate an argon2id hash for an admin API key",
	Long: `Generate an argon2id hash of an admin API key for use in config.

The output can be used directly as admin.api_key_hash. Remote admin
callers then authenticate with "Authorization: Bearer <api-key>".

Example:
  seqgate hash-key "my-secret-api-key"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The key will appear in shell history.
Consider clearing history after use or using environment variable:
  seqgate hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKeyArgon2id(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}

package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/solatis/rulekeeper/internal/core/auth"
	"github.com/solatis/rulekeeper/internal/core/config"
	"github.com/solatis/rulekeeper/internal/core/db"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Issue and revoke tenant API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key for a tenant",
	Long: `Issue a new API key. The key is printed once; only its HMAC digest is stored.
With several HMAC secrets configured, --secret-id selects the signing secret.`,
	RunE: runAPIKeyCreate,
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd)
	apiKeyCreateCmd.Flags().String("tenant", "", "tenant id (required)")
	apiKeyCreateCmd.Flags().String("name", "", "human-readable key name")
	apiKeyCreateCmd.Flags().String("secret-id", "", "HMAC secret id to sign with")
	_ = apiKeyCreateCmd.MarkFlagRequired("tenant")
}

// signingSecret picks the secret named by secretID, or the only configured one.
func signingSecret(secrets map[string][]byte, secretID string) (string, []byte, error) {
	if secretID != "" {
		secret, ok := secrets[secretID]
		if !ok {
			return "", nil, fmt.Errorf("secret_id %s not configured", secretID)
		}
		return secretID, secret, nil
	}
	switch len(secrets) {
	case 0:
		return "", nil, fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	case 1:
		for id, secret := range secrets {
			return id, secret, nil
		}
	}
	ids := maps.Keys(secrets)
	slices.Sort(ids)
	return "", nil, fmt.Errorf("several HMAC secrets configured, choose one with --secret-id: %v", ids)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	secretID, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	id, secret, err := signingSecret(secrets, secretID)
	if err != nil {
		return err
	}

	database, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()
	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	issued, err := auth.IssueAPIKey(cmd.Context(), queries, id, secret, tenantID, name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "api_key_id: %s\n", issued.APIKeyID)
	fmt.Fprintf(out, "tenant_id:  %s\n", issued.TenantID)
	fmt.Fprintf(out, "key:        %s\n", issued.Key)
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	database, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()
	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	if err := auth.RevokeAPIKey(cmd.Context(), queries, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}

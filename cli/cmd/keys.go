package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"arogyarakshak/core/auth"
	"arogyarakshak/core/storage"
	"arogyarakshak/core/wallet"
)

var keysDir string

var keygenCmd = &cobra.Command{
	Use:   "keygen <orgId>",
	Short: "Generate (or replace) an organisation's signing keypair in the local key store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir := keysDir
		if dir == "" {
			dir = cfg.KeysDir()
		}
		cipher, err := storage.CipherFromDEK(cfg.DEK)
		if err != nil {
			return err
		}
		ks, err := wallet.NewFileKeyStore(dir, cipher)
		if err != nil {
			return err
		}
		kp, err := ks.Generate(args[0])
		if err != nil {
			return err
		}
		if output == "json" {
			return printJSON(cmd.OutOrStdout(), map[string]any{"orgId": kp.OrgID, "publicKey": kp.PublicKey, "createdAt": kp.CreatedAt})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Org: %s\nPublic key: %s\n", kp.OrgID, kp.PublicKey)
		return nil
	},
}

var (
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an API bearer token signed with AROGYA_JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWTSecret == "" {
			return errors.New("AROGYA_JWT_SECRET is not set")
		}
		if !auth.Roles[tokenRole] {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		tok, err := auth.IssueToken([]byte(cfg.JWTSecret), cfg.JWTIssuer, args[0], tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keysDir, "keys-dir", "", "key directory (default $AROGYA_DATA_DIR/keys)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "staff", "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	rootCmd.AddCommand(keygenCmd, tokenCmd)
}

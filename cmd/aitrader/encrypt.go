package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ademcakal63-hue/ai-crypto-trader-dashboard/internal/crypto"
)

func newEncryptKeyCmd() *cobra.Command {
	var (
		out      string
		secret   string
		password string
	)
	cmd := &cobra.Command{
		Use:   "encrypt-key",
		Short: "Seal the exchange API secret into a password-protected keystore",
		Long: `Encrypt the Binance API secret so it never sits in plain text in the
config. Point binance.encrypted_secret_path at the written file and supply the
password through AITRADER_BINANCE_SECRET_PASSWORD.

The secret is read from --secret, AITRADER_BINANCE_API_SECRET or stdin, in
that order. The password comes from --password or
AITRADER_BINANCE_SECRET_PASSWORD.

Example:
  echo "$SECRET" | aitrader encrypt-key --out binance.key --password "$PW"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("AITRADER_BINANCE_API_SECRET")
			}
			if secret == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("encrypt-key: read secret: %w", err)
				}
				secret = strings.TrimSpace(string(data))
			}
			if secret == "" {
				return fmt.Errorf("encrypt-key: no secret given")
			}
			if password == "" {
				password = os.Getenv("AITRADER_BINANCE_SECRET_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("encrypt-key: a password is required")
			}

			blob, err := crypto.Seal(secret, password)
			if err != nil {
				return fmt.Errorf("encrypt-key: %w", err)
			}
			if err := os.WriteFile(out, blob, 0o600); err != nil {
				return fmt.Errorf("encrypt-key: write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sealed secret written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "binance.key", "keystore file to write")
	cmd.Flags().StringVar(&secret, "secret", "", "API secret to seal")
	cmd.Flags().StringVar(&password, "password", "", "keystore password")
	return cmd
}

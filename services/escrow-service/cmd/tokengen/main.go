package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/floroz/poetchain/pkg/auth"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "tokengen <address>",
	Short: "tokengen mints a bearer token for an account address",
	Long:  `tokengen signs an RS256 token whose subject is the given address. Meant for local development.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		if !common.IsHexAddress(args[0]) {
			return fmt.Errorf("invalid address %q", args[0])
		}

		privPEM, err := os.ReadFile(v.GetString("private-key"))
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		pubPEM, err := os.ReadFile(v.GetString("public-key"))
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}

		signer, err := auth.NewSigner(privPEM, pubPEM, v.GetString("issuer"))
		if err != nil {
			return err
		}

		token, expiresAt, err := signer.WithTTL(v.GetDuration("ttl")).GenerateToken(common.HexToAddress(args[0]))
		if err != nil {
			return err
		}

		fmt.Fprintln(c.OutOrStdout(), token)
		fmt.Fprintf(c.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.String("private-key", "jwt.key", "Path to the RSA private key PEM")
	flags.String("public-key", "jwt.pub", "Path to the RSA public key PEM")
	flags.String("issuer", "poetchain", "Token issuer, must match JWT_ISSUER of the API")
	flags.Duration("ttl", auth.DefaultTokenTTL, "Token lifetime")

	v.SetEnvPrefix("TOKENGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

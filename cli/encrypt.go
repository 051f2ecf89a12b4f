package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/bundle"
)

var (
	encryptIn        string
	encryptOut       string
	encryptPublicKey string
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a catalog JSON document into a bundle",
	RunE:  runEncrypt,
}

func init() {
	encryptCmd.Flags().StringVarP(&encryptIn, "input", "i", "", "path to the catalog JSON document")
	encryptCmd.Flags().StringVarP(&encryptOut, "output", "o", "", "path to write the encrypted bundle")
	encryptCmd.Flags().StringVar(&encryptPublicKey, "public-key", "", "path to the RSA public key (PEM)")
	encryptCmd.MarkFlagRequired("input")      //nolint:errcheck
	encryptCmd.MarkFlagRequired("output")     //nolint:errcheck
	encryptCmd.MarkFlagRequired("public-key") //nolint:errcheck
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	if err := bundle.Encrypt(encryptIn, encryptOut, encryptPublicKey); err != nil {
		return fmt.Errorf("encrypting bundle: %w", err)
	}
	printSuccess(fmt.Sprintf("wrote bundle to %s", encryptOut))
	return nil
}

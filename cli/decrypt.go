package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/bundle"
)

var (
	decryptIn         string
	decryptOut        string
	decryptPrivateKey string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt a bundle into a catalog JSON document",
	RunE:  runDecrypt,
}

func init() {
	decryptCmd.Flags().StringVarP(&decryptIn, "input", "i", "", "path to the encrypted bundle")
	decryptCmd.Flags().StringVarP(&decryptOut, "output", "o", "", "path to write the decrypted catalog JSON")
	decryptCmd.Flags().StringVar(&decryptPrivateKey, "private-key", "", "path to the RSA private key (PEM)")
	decryptCmd.MarkFlagRequired("input")       //nolint:errcheck
	decryptCmd.MarkFlagRequired("output")      //nolint:errcheck
	decryptCmd.MarkFlagRequired("private-key") //nolint:errcheck
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	if err := bundle.Decrypt(decryptIn, decryptOut, decryptPrivateKey); err != nil {
		return fmt.Errorf("decrypting bundle: %w", err)
	}
	printSuccess(fmt.Sprintf("wrote catalog to %s", decryptOut))
	return nil
}

package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// keyCmd represents the key command group
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Encryption key management",
	Long:  `Manage the AES-256 key used to encrypt stored Google refresh tokens.`,
}

// keyGenerateCmd mints a new encryption key
var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new encryption key",
	Long: `Generate a new 64 hex character (32 byte) encryption key.

Set the printed value as MAILMATE_ENCRYPTION_KEY or encryption_key in
config.json. Rotating the key invalidates refresh tokens encrypted with
the previous key; affected users must sign in again.`,
	Run: func(cmd *cobra.Command, args []string) {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to generate key: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(hex.EncodeToString(key))
	},
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd)
}

package cli

import (
	"os"

	"github.com/moshdev2213/MailMate/internal/config"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db  *gorm.DB
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailmate",
	Short: "MailMate backend service",
	Long: `MailMate is a backend service for Gmail inbox metadata: Google OAuth
sign-in, IMAP envelope sync and a paginated email query API.

The command line tool provides operator utilities:
  mailmate key generate    # mint a new encryption key for refresh tokens
  mailmate user list       # list registered users`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
}

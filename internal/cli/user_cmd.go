package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/moshdev2213/MailMate/internal/database/models"
	"github.com/spf13/cobra"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long:  `Inspect registered users. Accounts are created through Google sign-in only.`,
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Run: func(cmd *cobra.Command, args []string) {
		var users []models.User
		if err := db.Order("id").Find(&users).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users registered.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tREFRESH TOKEN\tCREATED")
		for _, u := range users {
			name := ""
			if u.Name != nil {
				name = *u.Name
			}
			hasToken := "no"
			if u.RefreshToken != nil && *u.RefreshToken != "" {
				hasToken = "yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, name, hasToken, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	},
}

func init() {
	userCmd.AddCommand(userListCmd)
}

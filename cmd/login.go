package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/internal/client"
	"github.com/uofuseismo/cct-review/internal/config"
)

// Variables to hold flag values
var (
	user string
	pass string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the CCT service",
	Long: `Exchanges your credentials for a JSON web token and saves it, together with
your permission level, so later commands can reuse it until it expires.

Example:
  cct-review login --username analyst --password secret`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()

		fmt.Printf("Authenticating against %s as user '%s'...\n", settings.Endpoint, user)

		// 1. Perform Login
		holder := auth.NewHolder()
		api := client.New(clientConfig(settings), holder)
		session, err := holder.Login(context.Background(), api, user, pass)
		if err != nil {
			fmt.Printf("Login failed: %v\n", err)
			os.Exit(1)
		}

		// 2. Persist Session to the config file
		if err := config.SaveSession(*session); err != nil {
			fmt.Printf("Failed to save configuration file: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Login successful (%s).", session.Permissions)
		if !session.Expiry.IsZero() {
			fmt.Printf(" Session expires %s.", session.Expiry.Local().Format(time.DateTime))
		}
		fmt.Println()
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.ClearSession(); err != nil {
			fmt.Printf("Failed to save configuration file: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		session, ok := config.LoadSession()
		if !ok {
			fmt.Println("Not logged in.")
			os.Exit(1)
		}
		if exp, err := auth.TokenExpiry(session.Token); err == nil {
			session.Expiry = exp
		}
		expired := auth.Expired(session.Token, time.Now())

		if jsonOutput {
			printJSON(struct {
				User        string `json:"user"`
				Permissions string `json:"permissions"`
				Expiry      string `json:"expiry,omitempty"`
				Expired     bool   `json:"expired"`
			}{session.User, string(session.Permissions), formatExpiry(session.Expiry), expired})
			return
		}

		fmt.Printf("User:        %s\n", session.User)
		fmt.Printf("Permissions: %s\n", session.Permissions)
		if !session.Expiry.IsZero() {
			fmt.Printf("Expires:     %s\n", formatExpiry(session.Expiry))
		}
		if expired {
			fmt.Println("The session has expired. Please run 'cct-review login' again.")
		}
	},
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVarP(&user, "username", "u", "", "CCT username")
	loginCmd.Flags().StringVarP(&pass, "password", "p", "", "CCT password")

	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("password")
}

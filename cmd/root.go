package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/internal/client"
	"github.com/uofuseismo/cct-review/internal/config"
	"github.com/uofuseismo/cct-review/pkg/models"
)

var cfgFile string
var jsonOutput bool
var verbose bool
var schemaFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cct-review",
	Short: "Review Mw,coda magnitudes computed by the CCT service",
	Long: `Browse the events processed by the coda calibration tool, inspect their
spectral fits and quality flags, and accept or reject the Mw,coda magnitudes.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() { config.InitConfig(cfgFile) })

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cct-review.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Trace HTTP requests")
	rootCmd.PersistentFlags().StringVar(&schemaFlag, "schema", "", "Schema to use (production or test), overrides the saved setting")
}

// loadSettings reads the effective configuration and applies --schema.
func loadSettings() *config.Settings {
	settings, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if schemaFlag != "" {
		schema, err := models.ParseSchema(schemaFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		settings.Schema = schema
	}
	return settings
}

func clientConfig(settings *config.Settings) client.ClientConfig {
	return client.ClientConfig{
		Endpoint:    settings.Endpoint,
		Timeout:     settings.Timeout,
		InsecureTLS: settings.InsecureTLS,
		Debug:       verbose,
	}
}

// getClient returns a client carrying the stored session. An expired
// session is cleared from the config file.
func getClient() (*client.CCTClient, *auth.Holder, *config.Settings) {
	settings := loadSettings()
	if settings.Session == nil {
		fmt.Println("Error: Not logged in. Please run 'cct-review login' first.")
		os.Exit(1)
	}

	holder := auth.NewHolder()
	holder.Restore(*settings.Session)
	holder.OnLogout(func() {
		if err := config.ClearSession(); err != nil {
			fmt.Printf("Warning: failed to clear saved session: %v\n", err)
		}
	})
	return client.New(clientConfig(settings), holder), holder, settings
}

// exitOnError prints err with a hint when the session has ended.
func exitOnError(action string, err error) {
	if client.IsAuthError(err) {
		fmt.Printf("Error %s: %v. Please run 'cct-review login' again.\n", action, err)
	} else {
		fmt.Printf("Error %s: %v\n", action, err)
	}
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Printf("Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

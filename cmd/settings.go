package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/uofuseismo/cct-review/internal/config"
	"github.com/uofuseismo/cct-review/pkg/models"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change local settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		settings := loadSettings()
		if jsonOutput {
			printJSON(settings)
			return
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(settings); err != nil {
			fmt.Printf("Error encoding YAML: %v\n", err)
			os.Exit(1)
		}
		_ = enc.Close()
	},
}

var settingsSchemaCmd = &cobra.Command{
	Use:       "schema [production|test]",
	Short:     "Select the schema used by later commands",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(models.SchemaProduction), string(models.SchemaTest)},
	Run: func(cmd *cobra.Command, args []string) {
		schema, err := models.ParseSchema(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if err := config.SaveSchema(schema); err != nil {
			fmt.Printf("Failed to save configuration file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Schema set to %s.\n", schema)
	},
}

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the schemas served by the CCT service",
	Run: func(cmd *cobra.Command, args []string) {
		api, _, _ := getClient()

		schemas, err := api.AvailableSchemas(context.Background())
		if err != nil {
			exitOnError("fetching schemas", err)
		}

		if jsonOutput {
			printJSON(schemas)
			return
		}
		if len(schemas) == 0 {
			fmt.Println("No schemas reported.")
			return
		}
		for _, s := range schemas {
			fmt.Println(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(schemasCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSchemaCmd)
}

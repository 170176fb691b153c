package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/anotador/annotation"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "anotador [folder|config.yaml]",
	Short: "Annotate screenshots for bug reports",
	Long: strings.TrimSpace(`
Start the annotation server. Screenshots are uploaded as sessions, marked up
with arrows, rectangles, text notes and blur boxes, and exported as a single
flattened PNG together with the captured page context.

If you provide a folder, it is initialized first (see the init command) and
its config.yaml is used.
    `),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configFile := "config.yaml"
		if len(args) == 1 {
			configFile = args[0]
		}
		if stat, err := os.Stat(configFile); err == nil && stat.IsDir() {
			log.Printf("Detected folder argument: %s", configFile)
			initialized, err := initProject(configFile)
			if err != nil {
				return err
			}
			configFile = initialized
		}

		config, err := annotation.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("addr") {
			config.Server.Addr, _ = cmd.Flags().GetString("addr")
		}

		db, err := annotation.GetDatabase(config.Storage.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		app, err := annotation.NewAnnotatorApp(config, db)
		if err != nil {
			return fmt.Errorf("failed to prepare storage: %w", err)
		}

		log.Printf("Configuration: %s", configFile)
		log.Printf("Database: %s", config.Storage.Database)
		log.Printf("Images: %s", config.Storage.Images)
		log.Printf("Exports: %s", config.Storage.Exports)
		log.Printf("Viewport: %dx%d", config.Viewport.Width, config.Viewport.Height)
		log.Printf("Starting server on: %s", config.Server.Addr)

		return http.ListenAndServe(config.Server.Addr, app.GetHTTPHandler())
	},
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.Flags().StringP("addr", "a", annotation.DefaultAddr, "Address to bind the webserver, overrides server.addr")
}

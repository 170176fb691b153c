package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lewtec/anotador/annotation"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [folder]",
	Short: "Initialize a new annotation project",
	Long: `Initialize a new annotation project by creating, inside folder:
- A sample configuration file (config.yaml)
- The SQLite database, with its schema
- The images and exports folders

Existing files are kept.

Example:
  anotador init ./reports`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		configFile, err := initProject(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialization complete! Start the server with:\n  anotador %s\n", configFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// initProject creates whatever is missing of a project in dir and returns
// the path of its config file
func initProject(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create project folder: %w", err)
	}
	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Printf("Creating default config: %s", configFile)
		if err := annotation.WriteSampleConfig(configFile); err != nil {
			return "", fmt.Errorf("failed to create config: %w", err)
		}
	} else {
		log.Printf("Config file already exists: %s", configFile)
	}

	config, err := annotation.LoadConfig(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	for _, folder := range []string{config.Storage.Images, config.Storage.Exports} {
		if _, err := os.Stat(folder); os.IsNotExist(err) {
			log.Printf("Creating folder: %s", folder)
			if err := os.MkdirAll(folder, 0755); err != nil {
				return "", fmt.Errorf("failed to create folder: %w", err)
			}
		}
	}

	if _, err := os.Stat(config.Storage.Database); os.IsNotExist(err) {
		log.Printf("Creating empty database: %s", config.Storage.Database)
	}
	db, err := annotation.GetDatabase(config.Storage.Database)
	if err != nil {
		return "", fmt.Errorf("failed to create database: %w", err)
	}
	return configFile, db.Close()
}

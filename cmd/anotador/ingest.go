package main

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lewtec/anotador/annotation"
)

type ingestJob struct {
	path string
	data []byte
}

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest config.yaml folder...",
	Short: "Start one session per screenshot found in the given folders",
	Long: `Walk the given folders and start one annotation session for every image
found. Files that are not images are skipped.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(2)(cmd, args); err != nil {
			return err
		}
		for i, input := range args[1:] {
			fileInfo, err := os.Stat(input)
			if err != nil {
				return fmt.Errorf("on %dth argument: %w", i+2, err)
			}
			if !fileInfo.IsDir() {
				return fmt.Errorf("on %dth argument: must be a directory", i+2)
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, _ := cmd.Flags().GetUint("jobs")
		if jobs == 0 {
			jobs = 1
		}
		config, err := annotation.LoadConfig(args[0])
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
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

		queue := make(chan ingestJob, 10)
		var wg sync.WaitGroup
		var mu sync.Mutex
		created, failed := 0, 0
		ingestWorker := func() {
			defer wg.Done()
			for job := range queue {
				s, err := app.Sessions.Create(cmd.Context(), job.data)
				mu.Lock()
				if err != nil {
					failed++
					log.Printf("ingest: while starting session for '%s': %s", job.path, err)
				} else {
					created++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, job.path)
				}
				mu.Unlock()
			}
		}
		for i := uint(0); i < jobs; i++ {
			wg.Add(1)
			go ingestWorker()
		}

		var walkErr error
		for _, input := range args[1:] {
			walkErr = filepath.WalkDir(input, func(path string, info fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() {
					return nil
				}
				data, format, err := annotation.ReadImageFile(path)
				if err != nil {
					return nil
				}
				log.Printf("found %s image '%s'", format, path)
				queue <- ingestJob{path: path, data: data}
				return nil
			})
			if walkErr != nil {
				break
			}
		}
		close(queue)
		wg.Wait()

		log.Printf("ingest: %d sessions created, %d failed", created, failed)
		if walkErr != nil {
			return fmt.Errorf("while walking folders: %w", walkErr)
		}
		if failed > 0 {
			return fmt.Errorf("%d screenshots could not be ingested", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().UintP("jobs", "j", 1, "Amount of concurrent ingestors")
}

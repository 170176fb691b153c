package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lewtec/anotador/annotation"
	"github.com/lewtec/anotador/internal/engine"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render [flags] image script.yaml output.png",
	Short: "Replay an event script over a screenshot and write the composite",
	Long: `Replay an event script over a screenshot without a server or database.

The script is a YAML list of the same events accepted by
POST /sessions/{id}/events, for example:

  - {type: tool, tool: rectangle}
  - {type: drag, at: {x: 40, y: 40}, to: {x: 220, y: 120}}
  - {type: label, text: "button is misaligned"}
  - {type: text, at: {x: 40, y: 200}, text: "happens after login"}`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var width, height int
		viewport, _ := cmd.Flags().GetString("viewport")
		if _, err := fmt.Sscanf(viewport, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
			return fmt.Errorf("invalid viewport %q, expected WIDTHxHEIGHT", viewport)
		}

		data, format, err := annotation.ReadImageFile(args[0])
		if err != nil {
			return err
		}
		events, err := annotation.LoadScript(args[1])
		if err != nil {
			return err
		}

		e := engine.New(engine.WithViewport(width, height))
		if err := e.Load(data, nil); err != nil {
			return err
		}
		if err := annotation.ReplayScript(e, events); err != nil {
			return err
		}

		f, err := os.Create(args[2])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := e.EncodePNG(f); err != nil {
			return fmt.Errorf("while writing '%s': %w", args[2], err)
		}
		w, h := e.Size()
		log.Printf("render: %s (%s) + %d events -> %s (%dx%d, %d shapes)", args[0], format, len(events), args[2], w, h, len(e.Shapes()))
		return f.Close()
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("viewport", "v", fmt.Sprintf("%dx%d", annotation.DefaultViewportWidth, annotation.DefaultViewportHeight), "Box the screenshot is downscaled to fit")
}

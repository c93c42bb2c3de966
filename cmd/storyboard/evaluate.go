package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bootstrap"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/consistency"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

var evaluateFlags struct {
	storyboard  string
	description string
	characters  []string
	runID       string
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [image]...",
	Short: "Judge character consistency across images",
	Long: `Evaluate sends the images to the judge model and prints a consistency report.
Images may be local paths, http(s) URLs, s3:// URIs or data URIs.

With --run the images, description and roster of a stored run are used and
the report is recorded against that run.

Examples:
  storyboard evaluate a.png b.png --character "Mara=red coat, grey braid"
  storyboard evaluate --storyboard storyboard.json generated-images/*.png
  storyboard evaluate --run 6f1c...`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateFlags.storyboard, "storyboard", "", "Storyboard JSON file giving scene and roster context")
	f.StringVar(&evaluateFlags.description, "description", "", "Story description for the judge")
	f.StringArrayVar(&evaluateFlags.characters, "character", nil, "Character as name=description (repeatable)")
	f.StringVar(&evaluateFlags.runID, "run", "", "Evaluate a stored run by ID")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && evaluateFlags.runID == "" {
		return fmt.Errorf("at least one image or --run is required")
	}
	characters, err := parseCharacters(evaluateFlags.characters)
	if err != nil {
		return err
	}
	ec := consistency.Context{Description: evaluateFlags.description, Characters: characters}
	if evaluateFlags.storyboard != "" {
		if err := loadStoryboardContext(evaluateFlags.storyboard, &ec); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	app, err := loadApp(ctx, "storyboard-cli")
	if err != nil {
		return err
	}
	resp, err := app.Evaluate(ctx, bootstrap.EvaluateRequest{
		RunID:   evaluateFlags.runID,
		Images:  args,
		Context: ec,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), resp)
}

// parseCharacters turns name=description pairs into roster entries.
func parseCharacters(pairs []string) ([]storyboard.Character, error) {
	var out []storyboard.Character
	for _, p := range pairs {
		name, desc, ok := strings.Cut(p, "=")
		name, desc = strings.TrimSpace(name), strings.TrimSpace(desc)
		if !ok || name == "" || desc == "" {
			return nil, fmt.Errorf("invalid --character %q: want name=description", p)
		}
		out = append(out, storyboard.Character{Name: name, Description: desc})
	}
	return out, nil
}

// loadStoryboardContext reads a storyboard file into the judge context.
// The roster in the file is used unless --character was given.
func loadStoryboardContext(path string, ec *consistency.Context) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read storyboard: %w", err)
	}
	ec.StoryboardJSON = string(data)

	var sb storyboard.Storyboard
	if err := json.Unmarshal(data, &sb); err != nil {
		return nil
	}
	if len(ec.Characters) == 0 {
		ec.Characters = sb.Characters
	}
	if ec.Description == "" {
		ec.Description = sb.Title
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/bundle"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

var runFlags struct {
	idea            string
	style           string
	title           string
	genre           string
	tone            string
	upload          bool
	desiredFilename string
	bucket          string
	bundle          string
	json            bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a storyboard from a story idea",
	Long: `Run executes the five pipeline steps: script, storyboard, scene images,
PDF export and (with --upload) the S3 upload plus webhook handoff.

Examples:
  storyboard run --idea "A cat chases a mouse around the house"
  storyboard run --idea "Two rival chefs" --style Realistic --genre comedy --upload
  storyboard run --idea "A dragon's first flight" --bundle out/dragon.zip --json`,
	Args: cobra.NoArgs,
	RunE: runStoryboard,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.idea, "idea", "i", "", "Story idea (required)")
	f.StringVar(&runFlags.style, "style", storyboard.DefaultStyle, "Visual style for every scene")
	f.StringVar(&runFlags.title, "title", "", "Storyboard title (default: generated)")
	f.StringVar(&runFlags.genre, "genre", "", "Genre hint for the screenplay")
	f.StringVar(&runFlags.tone, "tone", "", "Tone hint for the screenplay")
	f.BoolVar(&runFlags.upload, "upload", false, "Upload the PDF and notify the webhook")
	f.StringVar(&runFlags.desiredFilename, "filename", "", "Object name for the uploaded PDF")
	f.StringVar(&runFlags.bucket, "bucket", "", "Override the upload bucket")
	f.StringVar(&runFlags.bundle, "bundle", "", "Write a zip bundle of the run to this path")
	f.BoolVar(&runFlags.json, "json", false, "Print the full run result as JSON")
	runCmd.MarkFlagRequired("idea")
}

func runStoryboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := loadApp(ctx, "storyboard-cli")
	if err != nil {
		return err
	}

	req := storyboard.StoryRequest{
		StoryIdea: runFlags.idea,
		Style:     runFlags.style,
		Title:     runFlags.title,
		Genre:     runFlags.genre,
		Tone:      runFlags.tone,
	}
	var res *pipeline.RunResult
	if runFlags.upload {
		res, err = app.Orchestrator.RunWithUpload(ctx, req, pipeline.UploadOptions{
			DesiredFilename: runFlags.desiredFilename,
			Bucket:          runFlags.bucket,
		})
	} else {
		res, err = app.Orchestrator.Run(ctx, req)
	}
	if err != nil {
		log.Error().Err(err).Msg("Storyboard run failed")
		return err
	}

	if runFlags.bundle != "" {
		sum, err := bundle.Write(runFlags.bundle, res)
		if err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
		log.Info().Str("path", sum.Path).Int64("bytes", sum.Size).Int("entries", len(sum.Entries)).Msg("Bundle written")
	}

	out := cmd.OutOrStdout()
	if runFlags.json {
		return printJSON(out, res)
	}
	printSummary(out, res)
	return nil
}

func printSummary(w io.Writer, res *pipeline.RunResult) {
	fmt.Fprintf(w, "\nRun %s: %q\n", res.RunID, res.Storyboard.Title)
	fmt.Fprintf(w, "  Style:      %s\n", res.Request.Style)
	fmt.Fprintf(w, "  Scenes:     %d (%d images)\n", len(res.Scenes), storyboard.CountImages(res.Scenes))
	if len(res.Storyboard.Characters) > 0 {
		names := make([]string, 0, len(res.Storyboard.Characters))
		for _, c := range res.Storyboard.Characters {
			names = append(names, c.Name)
		}
		fmt.Fprintf(w, "  Characters: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(w, "  PDF:        %s\n", res.Export.PDFPath)
	if res.Upload != nil {
		fmt.Fprintf(w, "  Upload:     %s", res.Upload.Status)
		if res.Upload.S3URL != "" {
			fmt.Fprintf(w, " %s", res.Upload.S3URL)
		}
		fmt.Fprintln(w)
	}
	if res.FallbackUsed {
		fmt.Fprintln(w, "  Note:       storyboard fell back to the built-in template")
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  Warning:    %s\n", warn)
	}
	fmt.Fprintf(w, "  Duration:   %s\n\n", res.Duration.Round(time.Millisecond))
}

// Package bundle packs the artifacts of a finished run into one zip file:
// the storyboard JSON, the script text, every scene image and the PDF.
package bundle

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/pipeline"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// Entry names inside the archive.
const (
	StoryboardEntry = "storyboard.json"
	ScriptEntry     = "script.txt"
	ImagesDir       = "images/"
)

// Summary describes a written bundle.
type Summary struct {
	Path    string   `json:"path"`
	Size    int64    `json:"size"`
	Entries []string `json:"entries"`
	// Skipped lists artifact paths that could not be read.
	Skipped []string `json:"skipped,omitempty"`
}

// Write creates the zip at path. Missing images or a placeholder PDF are
// skipped with a warning; the storyboard and script are always written.
func Write(path string, res *pipeline.RunResult) (*Summary, error) {
	if res == nil {
		return nil, errors.New("bundle: nil run result")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	sum := &Summary{Path: path}
	modTime := time.Now()

	sbJSON, err := json.MarshalIndent(storyboardDoc{
		RunID:      res.RunID,
		Title:      res.Storyboard.Title,
		Style:      res.Request.Style,
		Characters: res.Storyboard.Characters,
		Scenes:     res.Scenes,
		Export:     res.Export,
		Warnings:   res.Warnings,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal storyboard: %w", err)
	}
	if err := writeBytes(zw, StoryboardEntry, sbJSON, modTime); err != nil {
		return nil, err
	}
	sum.Entries = append(sum.Entries, StoryboardEntry)

	if err := writeBytes(zw, ScriptEntry, []byte(res.Script.Text), modTime); err != nil {
		return nil, err
	}
	sum.Entries = append(sum.Entries, ScriptEntry)

	for _, sc := range res.Scenes {
		if sc.ImagePath == "" {
			continue
		}
		name := fmt.Sprintf("%sscene-%02d%s", ImagesDir, sc.SceneNumber, filepath.Ext(sc.ImagePath))
		if err := writeFile(zw, name, sc.ImagePath); err != nil {
			log.Warn().Err(err).Str("image", sc.ImagePath).Msg("Skipping image in bundle")
			sum.Skipped = append(sum.Skipped, sc.ImagePath)
			continue
		}
		sum.Entries = append(sum.Entries, name)
	}

	if pdfPath := res.Export.PDFPath; pdfPath != "" && res.Export.Summary.PDFSize > 0 {
		name := filepath.Base(pdfPath)
		if err := writeFile(zw, name, pdfPath); err != nil {
			log.Warn().Err(err).Str("pdf", pdfPath).Msg("Skipping PDF in bundle")
			sum.Skipped = append(sum.Skipped, pdfPath)
		} else {
			sum.Entries = append(sum.Entries, name)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close bundle: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat bundle: %w", err)
	}
	sum.Size = info.Size()

	log.Info().
		Str("path", path).
		Int("entries", len(sum.Entries)).
		Int64("size", sum.Size).
		Msg("Run bundle written")
	return sum, nil
}

type storyboardDoc struct {
	RunID      string                      `json:"runId"`
	Title      string                      `json:"title"`
	Style      string                      `json:"style"`
	Characters []storyboard.Character      `json:"characters,omitempty"`
	Scenes     []storyboard.SceneWithImage `json:"scenes"`
	Export     storyboard.ExportResult     `json:"export"`
	Warnings   []string                    `json:"warnings,omitempty"`
}

func writeBytes(zw *zip.Writer, name string, data []byte, modTime time.Time) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetModTime(modTime)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write bundle entry %s: %w", name, err)
	}
	return nil
}

// writeFile streams a file from disk into the archive. Images are already
// compressed, so they are stored rather than deflated.
func writeFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return err
	}

	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if filepath.Ext(path) != ".pdf" {
		header.Method = zip.Store
	}
	header.SetModTime(info.ModTime())
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write bundle entry %s: %w", name, err)
	}
	return nil
}

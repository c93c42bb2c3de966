// Package pdf renders a finished storyboard into an A4 PDF document.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"

	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/imageutil"
	"github.com/Sri01729/template-ai-storyboard-consistent-character/internal/storyboard"
)

// Page geometry in millimetres.
const (
	pageMargin   = 15.0
	contentWidth = 210.0 - 2*pageMargin
	imageHeight  = contentWidth * 9 / 16
)

// Document is everything needed to render one storyboard.
type Document struct {
	Title  string
	Style  string
	Scenes []storyboard.SceneWithImage
}

// Renderer writes storyboard PDFs into Dir.
type Renderer struct {
	Dir string
	now func() time.Time
}

// NewRenderer returns a renderer writing into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir, now: time.Now}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName returns "<title_with_underscores>_storyboard_<unixMillis>.pdf".
func FileName(title string, at time.Time) string {
	base := unsafeFileChars.ReplaceAllString(strings.TrimSpace(title), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "Untitled"
	}
	return fmt.Sprintf("%s_storyboard_%d.pdf", base, at.UnixMilli())
}

// Render lays out doc and writes it to disk. Scenes without a readable
// image get a framed placeholder; that is not an error.
func (r *Renderer) Render(ctx context.Context, doc Document) (storyboard.ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return storyboard.ExportResult{}, err
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	at := now()

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return storyboard.ExportResult{}, fmt.Errorf("create export dir: %w", err)
	}

	title := doc.Title
	if strings.TrimSpace(title) == "" {
		title = storyboard.DefaultTitle
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("ai-storyboard-generator", true)
	pdf.SetCreationDate(at)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin + 5)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	r.cover(pdf, tr, title, doc, at)

	images := 0
	for i, sc := range doc.Scenes {
		if err := ctx.Err(); err != nil {
			return storyboard.ExportResult{}, err
		}
		if r.scene(pdf, tr, i, sc) {
			images++
		}
		if pdf.Err() {
			return storyboard.ExportResult{}, fmt.Errorf("render scene %d: %w", sc.SceneNumber, pdf.Error())
		}
	}

	path := filepath.Join(r.Dir, FileName(title, at))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return storyboard.ExportResult{}, fmt.Errorf("write pdf: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return storyboard.ExportResult{}, fmt.Errorf("stat pdf: %w", err)
	}

	log.Info().
		Str("path", path).
		Int("scenes", len(doc.Scenes)).
		Int("images", images).
		Int64("bytes", info.Size()).
		Msg("Storyboard PDF written")

	return storyboard.ExportResult{
		PDFPath: path,
		Title:   title,
		Summary: storyboard.ExportSummary{
			TotalScenes: len(doc.Scenes),
			TotalImages: images,
			PDFSize:     info.Size(),
		},
	}, nil
}

func (r *Renderer) cover(pdf *fpdf.Fpdf, tr func(string) string, title string, doc Document, at time.Time) {
	pdf.AddPage()
	pdf.SetY(80)
	pdf.SetFont("Helvetica", "B", 26)
	pdf.MultiCell(0, 12, tr(title), "", "C", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr("Generated: "+at.Format("January 2, 2006 15:04")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Scenes: %d", len(doc.Scenes)), "", 1, "C", false, 0, "")
	if doc.Style != "" {
		pdf.CellFormat(0, 8, tr("Style: "+doc.Style), "", 1, "C", false, 0, "")
	}
}

// scene renders one scene on its own page and reports whether its image
// was embedded.
func (r *Renderer) scene(pdf *fpdf.Fpdf, tr func(string) string, idx int, sc storyboard.SceneWithImage) bool {
	pdf.AddPage()

	num := sc.SceneNumber
	if num == 0 {
		num = idx + 1
	}
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, fmt.Sprintf("Scene %d", num), "", 1, "L", false, 0, "")

	var meta []string
	if sc.Location != "" {
		meta = append(meta, "Location: "+sc.Location)
	}
	if sc.TimeOfDay != "" {
		meta = append(meta, "Time: "+sc.TimeOfDay)
	}
	if len(meta) > 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.SetTextColor(90, 90, 90)
		pdf.CellFormat(0, 7, tr(strings.Join(meta, "  |  ")), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)

	y := pdf.GetY()
	embedded := r.image(pdf, fmt.Sprintf("scene-%d", idx), sc.ImagePath, y)
	if !embedded {
		placeholder(pdf, y)
	}
	pdf.SetY(y + imageHeight + 6)

	narrative := storyboard.PlainText(storyboard.CleanDescription(sc.StoryContent))
	if narrative == "" {
		narrative = storyboard.CleanDescription(sc.ImagePrompt)
	}
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(0, 6, tr(narrative), "", "L", false)
	return embedded
}

// image embeds the file at path and reports success. Registration errors
// are cleared so the document can continue with a placeholder.
func (r *Renderer) image(pdf *fpdf.Fpdf, name, path string, y float64) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Scene image unreadable, using placeholder")
		return false
	}
	data, mimeType, err := imageutil.ToPNGOrJPEG(data, imageutil.SniffMIME(path, data))
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Scene image could not be converted, using placeholder")
		return false
	}
	imgType := "PNG"
	if mimeType == "image/jpeg" {
		imgType = "JPG"
	}

	opts := fpdf.ImageOptions{ImageType: imgType, ReadDpi: false}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if pdf.Err() {
		log.Warn().Err(pdf.Error()).Str("path", path).Msg("Scene image rejected by PDF encoder, using placeholder")
		pdf.ClearError()
		return false
	}
	pdf.ImageOptions(name, pageMargin, y, contentWidth, imageHeight, false, opts, 0, "")
	return true
}

func placeholder(pdf *fpdf.Fpdf, y float64) {
	pdf.SetDrawColor(160, 160, 160)
	pdf.SetFillColor(240, 240, 240)
	pdf.Rect(pageMargin, y, contentWidth, imageHeight, "FD")
	pdf.SetXY(pageMargin, y+imageHeight/2-4)
	pdf.SetFont("Helvetica", "I", 12)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(contentWidth, 8, "Image unavailable", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
}

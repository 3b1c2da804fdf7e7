// Package pdf implements the document backend for PDF files: text tokens
// are read with ledongthuc/pdf, and fills, page assembly and text stamps
// are applied with pdfcpu.
package pdf

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/freetype/truetype"
	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"layout-translator/internal/document"
	"layout-translator/internal/fit"
	"layout-translator/internal/logger"
)

// CoveredTextNote describes how the original text is treated in the output
const CoveredTextNote = "original text is covered by fills, not removed; it can still be selected and extracted from the output"

// Config holds backend settings
type Config struct {
	// WorkDir is where temporary files are created; empty uses the OS default
	WorkDir string
	// Optimize runs pdfcpu's optimizer over the saved output
	Optimize bool
	// FallbackFont is a font file used for text a core font cannot encode
	FallbackFont string
}

// Backend edits one PDF. Commits are applied to a private working copy;
// the source file is never modified.
type Backend struct {
	config  Config
	conf    *model.Configuration
	source  string
	dir     string
	working string

	file   *os.File
	reader *lpdf.Reader
	dims   []types.Dim

	copies []int
	boxes  map[int][]document.TextBox
	fonts  map[string]string
	fills  int
}

// Open validates the PDF at path and prepares a working copy
func Open(path string, cfg Config) (*Backend, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(path, conf); err != nil {
		return nil, document.NewErrorWithDetails(document.ErrInvalidInput, "not a valid PDF", filepath.Base(path), err)
	}
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, document.NewErrorWithDetails(document.ErrInvalidInput, "failed to read page sizes", filepath.Base(path), err)
	}

	dir, err := os.MkdirTemp(cfg.WorkDir, "layout-translator-*")
	if err != nil {
		return nil, document.NewError(document.ErrPersistence, "failed to create work directory", err)
	}
	working := filepath.Join(dir, "working.pdf")
	if err := copyFile(path, working); err != nil {
		os.RemoveAll(dir)
		return nil, document.NewError(document.ErrPersistence, "failed to copy source PDF", err)
	}

	f, r, err := lpdf.Open(path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, document.NewErrorWithDetails(document.ErrInvalidInput, "failed to open PDF for text extraction", filepath.Base(path), err)
	}

	logger.Debug("pdf opened",
		logger.String("file", filepath.Base(path)),
		logger.Int("pages", len(dims)))

	return &Backend{
		config:  cfg,
		conf:    conf,
		source:  path,
		dir:     dir,
		working: working,
		file:    f,
		reader:  r,
		dims:    dims,
		boxes:   make(map[int][]document.TextBox),
		fonts:   make(map[string]string),
	}, nil
}

// PageCount implements document.Source
func (b *Backend) PageCount() int {
	return len(b.dims)
}

// PageSize implements document.Source
func (b *Backend) PageSize(index int) (document.Size, error) {
	if err := b.check(index); err != nil {
		return document.Size{}, err
	}
	d := b.dims[index]
	return document.Size{Width: d.Width, Height: d.Height}, nil
}

// Tokens implements document.Source. Tokens always come from the source
// file, so they do not reflect committed fills.
func (b *Backend) Tokens(index int) ([]document.Token, error) {
	if err := b.check(index); err != nil {
		return nil, err
	}
	return readTokens(b.reader, index, b.dims[index].Height)
}

// Commit stamps every fill onto the working copy as an opaque image.
// The covered text operators stay in the page content stream.
func (b *Backend) Commit(index int, fills []document.Fill) error {
	if err := b.check(index); err != nil {
		return err
	}
	pages := []string{strconv.Itoa(index + 1)}
	for _, fill := range fills {
		if fill.Rect.Empty() {
			continue
		}
		if err := b.stampFill(pages, fill); err != nil {
			return fmt.Errorf("page %d: %w", index+1, err)
		}
	}
	logger.Debug("fills committed",
		logger.Int("page", index+1),
		logger.Int("fills", len(fills)))
	return nil
}

func (b *Backend) stampFill(pages []string, fill document.Fill) error {
	b.fills++
	imgPath := filepath.Join(b.dir, fmt.Sprintf("fill-%d.png", b.fills))
	if err := writeFillImage(imgPath, fill); err != nil {
		return err
	}
	defer os.Remove(imgPath)

	desc := fmt.Sprintf("scalefactor:1 abs, position:tl, offset:%.2f %.2f, rotation:0, opacity:1",
		fill.Rect.X0, -fill.Rect.Y0)
	wm, err := api.ImageWatermark(imgPath, desc, true, false, types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to build fill: %w", err)
	}
	if err := api.AddWatermarksFile(b.working, "", pages, wm, b.conf); err != nil {
		return fmt.Errorf("failed to apply fill: %w", err)
	}
	return nil
}

// writeFillImage writes a solid PNG with one pixel per point
func writeFillImage(path string, fill document.Fill) error {
	w := int(math.Ceil(fill.Rect.Width()))
	h := int(math.Ceil(fill.Rect.Height()))
	img := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(img, img.Bounds(), image.NewUniform(fill.Color.Color), image.Point{}, draw.Src)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CopyPage implements document.Backend
func (b *Backend) CopyPage(index int) (int, error) {
	if err := b.check(index); err != nil {
		return 0, err
	}
	b.copies = append(b.copies, index)
	return len(b.copies) - 1, nil
}

// InsertText implements document.Backend. Boxes are stamped on Save.
func (b *Backend) InsertText(outIndex int, box document.TextBox) error {
	if outIndex < 0 || outIndex >= len(b.copies) {
		return fmt.Errorf("output page %d out of range", outIndex)
	}
	b.boxes[outIndex] = append(b.boxes[outIndex], box)
	return nil
}

// Save collects the copied pages of the working copy into path, stamps the
// text boxes and validates the result
func (b *Backend) Save(path string) error {
	if len(b.copies) == 0 {
		return fmt.Errorf("no pages to save")
	}

	pages := make([]string, len(b.copies))
	for i, src := range b.copies {
		pages[i] = strconv.Itoa(src + 1)
	}
	if err := api.CollectFile(b.working, path, pages, b.conf); err != nil {
		return fmt.Errorf("failed to assemble pages: %w", err)
	}

	outPages := make([]int, 0, len(b.boxes))
	for out := range b.boxes {
		outPages = append(outPages, out)
	}
	sort.Ints(outPages)
	for _, out := range outPages {
		for _, box := range b.boxes[out] {
			if err := b.stampText(path, out, box); err != nil {
				return fmt.Errorf("output page %d: %w", out+1, err)
			}
		}
	}

	if b.config.Optimize {
		if err := api.OptimizeFile(path, "", b.conf); err != nil {
			return fmt.Errorf("failed to optimize output: %w", err)
		}
	}
	if err := api.ValidateFile(path, b.conf); err != nil {
		return fmt.Errorf("output failed validation: %w", err)
	}

	logger.Info("pdf saved",
		logger.String("file", filepath.Base(path)),
		logger.Int("pages", len(pages)))
	return nil
}

// stampText draws each line of box as a separate text stamp
func (b *Backend) stampText(path string, outIndex int, box document.TextBox) error {
	if len(box.Lines) == 0 {
		return nil
	}
	fontName := b.fontFor(box)
	points := int(math.Max(1, math.Floor(box.Size)))
	pitch := box.Rect.Height() / float64(len(box.Lines))
	pages := []string{strconv.Itoa(outIndex + 1)}

	for i, line := range box.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		y := box.Rect.Y0 + float64(i)*pitch
		desc := fmt.Sprintf("fontname:%s, points:%d, scalefactor:1 abs, position:tl, offset:%.2f %.2f, rotation:0, fillcolor:%s, opacity:1",
			fontName, points, box.Rect.X0, -y, box.Color.Hex())
		wm, err := api.TextWatermark(line, desc, true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("failed to build text stamp: %w", err)
		}
		if err := api.AddWatermarksFile(path, "", pages, wm, b.conf); err != nil {
			return fmt.Errorf("failed to apply text stamp: %w", err)
		}
	}
	return nil
}

// fontFor picks the pdfcpu font name for a box. Font files are installed
// as pdfcpu user fonts on first use.
func (b *Backend) fontFor(box document.TextBox) string {
	if box.FontPath != "" {
		if name, ok := b.installFont(box.FontPath); ok {
			return name
		}
	}
	name := box.Font
	if name == "" {
		name = "Helvetica"
	}
	if font.IsCoreFont(name) && !encodable(box.Lines) && b.config.FallbackFont != "" {
		if fallback, ok := b.installFont(b.config.FallbackFont); ok {
			return fallback
		}
	}
	return name
}

func (b *Backend) installFont(path string) (string, bool) {
	if name, ok := b.fonts[path]; ok {
		return name, name != ""
	}

	name := ""
	if err := api.InstallFonts([]string{path}); err != nil {
		logger.Warn("font install failed", logger.String("path", path), logger.Err(err))
	} else {
		name = postscriptName(path)
	}
	b.fonts[path] = name
	return name, name != ""
}

// postscriptName reads the name pdfcpu registers an installed font under
func postscriptName(path string) string {
	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return fallback
	}
	if name := f.Name(truetype.NameIDPostscriptName); name != "" {
		return name
	}
	return fallback
}

// encodable reports whether core fonts can draw every rune
func encodable(lines []string) bool {
	for _, l := range lines {
		if !fit.CoreEncodable(l) {
			return false
		}
	}
	return true
}

// Close releases the reader and removes the working copy
func (b *Backend) Close() error {
	var err error
	if b.file != nil {
		err = b.file.Close()
		b.file = nil
	}
	if rmErr := os.RemoveAll(b.dir); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func (b *Backend) check(index int) error {
	if index < 0 || index >= len(b.dims) {
		return fmt.Errorf("page %d out of range (0..%d)", index, len(b.dims)-1)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var _ document.Backend = (*Backend)(nil)

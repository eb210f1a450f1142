// Package extractor turns source documents on disk into the per-page text
// and image units the ingestion pipeline chunks and embeds.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/scmclimited/deep-rag-core/internal/service"
)

// minImageDimension skips tiny embedded images (icons, bullets, decorative
// rules) that are never worth a figure chunk.
const minImageDimension = 32

// PDFAdapter implements service.PDFExtractor with github.com/ledongthuc/pdf.
// Extracted images are written next to the source PDF, under an
// "<pdf-name>-images" directory, so a local or GCS-mounted ImageLoader can
// read them back by path.
type PDFAdapter struct{}

// NewPDFAdapter creates a PDFAdapter.
func NewPDFAdapter() *PDFAdapter { return &PDFAdapter{} }

// Compile-time check.
var _ service.PDFExtractor = (*PDFAdapter)(nil)

// ExtractPDF reads every page of the PDF at path, returning ordered text and
// any large-enough embedded images.
func (a *PDFAdapter) ExtractPDF(ctx context.Context, path string) ([]service.ExtractedPage, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extractor.PDFAdapter.ExtractPDF: open: %w", err)
	}
	defer f.Close()

	imageDir := imageDirFor(path)
	total := reader.NumPage()
	pages := make([]service.ExtractedPage, 0, total)

	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			slog.Warn("extractor: page text extraction failed, skipping", "page", i, "error", err)
			continue
		}

		images := extractPageImages(page, i, imageDir)

		pages = append(pages, service.ExtractedPage{
			Number: i,
			Text:   strings.TrimSpace(text),
			Images: images,
		})
	}

	return pages, nil
}

func imageDirFor(pdfPath string) string {
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return filepath.Join(filepath.Dir(pdfPath), base+"-images")
}

// extractPageTextOrdered extracts text from a PDF page sorted by visual
// position (top-to-bottom). The library's GetPlainText reads text in
// content-stream order, which can put a heading after the body text it
// labels.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine
	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	var parts []string
	for _, l := range lines {
		if text := strings.TrimSpace(l.buf.String()); text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}

// extractPageImages pulls embedded raster images from a page's XObject
// resources, writes them under imageDir, and returns their on-disk paths
// with a generated figure caption.
func extractPageImages(page pdf.Page, pageNum int, imageDir string) []service.ExtractedImage {
	resources := page.Resources()
	if resources.IsNull() {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var images []service.ExtractedImage
	for n, name := range xobjects.Keys() {
		xobj := xobjects.Key(name)
		if xobj.Key("Subtype").Name() != "Image" || xobj.Key("ImageMask").Bool() {
			continue
		}

		width := int(xobj.Key("Width").Int64())
		height := int(xobj.Key("Height").Int64())
		if width < minImageDimension || height < minImageDimension {
			continue
		}

		data, ext := decodeImageStream(xobj, xobj.Key("Filter").Name(), width, height, pageNum, name)
		if data == nil {
			continue
		}

		if err := os.MkdirAll(imageDir, 0o755); err != nil {
			slog.Warn("extractor: could not create image dir", "dir", imageDir, "error", err)
			continue
		}
		outPath := filepath.Join(imageDir, fmt.Sprintf("page%02d-%02d%s", pageNum, n, ext))
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			slog.Warn("extractor: could not write extracted image", "path", outPath, "error", err)
			continue
		}

		images = append(images, service.ExtractedImage{
			Path:    outPath,
			Caption: fmt.Sprintf("Figure on page %d", pageNum),
		})
	}
	return images
}

// decodeImageStream reads the raw bytes of an image XObject, handling
// panics from the ledongthuc/pdf library's Reader() on filter
// combinations it doesn't support (notably DCTDecode/JPEG).
func decodeImageStream(xobj pdf.Value, filter string, width, height, pageNum int, name string) (data []byte, ext string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extractor: panic reading image stream, skipping", "page", pageNum, "name", name, "panic", r)
			data, ext = nil, ""
		}
	}()

	switch filter {
	case "DCTDecode":
		raw, err := readRawStreamBytes(xobj)
		if err != nil || len(raw) < 2 || raw[0] != 0xff || raw[1] != 0xd8 {
			return nil, ""
		}
		return raw, ".jpg"

	case "FlateDecode", "":
		rc := xobj.Reader()
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, ""
		}
		png, err := rawPixelsToPNG(raw, width, height, xobj.Key("ColorSpace").Name())
		if err != nil {
			return nil, ""
		}
		return png, ".png"

	default:
		return nil, ""
	}
}

// readRawStreamBytes reads the unfiltered stream bytes of a pdf.Value via
// reflection, bypassing Reader()'s filter chain for formats (JPEG) whose raw
// stream bytes are already the final encoded image.
func readRawStreamBytes(v pdf.Value) ([]byte, error) {
	length := v.Key("Length").Int64()
	if length <= 0 {
		return nil, fmt.Errorf("stream has no length")
	}

	val := reflect.ValueOf(v)
	dataField := val.Field(2)
	if dataField.IsNil() {
		return nil, fmt.Errorf("value has nil data")
	}
	streamVal := dataField.Elem()
	if streamVal.Kind() == reflect.Ptr {
		streamVal = streamVal.Elem()
	}
	offset := streamVal.Field(2).Int()

	rField := val.Field(0)
	if rField.IsNil() {
		return nil, fmt.Errorf("value has nil reader")
	}
	readerStruct := reflect.NewAt(rField.Type().Elem(), rField.UnsafePointer()).Elem()
	readerAt, ok := readerStruct.Field(0).Interface().(io.ReaderAt)
	if !ok {
		return nil, fmt.Errorf("reader.f is not io.ReaderAt")
	}

	buf := make([]byte, length)
	n, err := readerAt.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading stream at offset %d: %w", offset, err)
	}
	return buf[:n], nil
}

// rawPixelsToPNG re-encodes decompressed raw pixel data as PNG.
func rawPixelsToPNG(data []byte, width, height int, colorSpace string) ([]byte, error) {
	var img image.Image
	switch colorSpace {
	case "DeviceRGB", "":
		expected := width * height * 3
		if len(data) < expected {
			return nil, fmt.Errorf("insufficient data for RGB image: got %d, want %d", len(data), expected)
		}
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				off := (y*width + x) * 3
				rgba.SetRGBA(x, y, color.RGBA{R: data[off], G: data[off+1], B: data[off+2], A: 255})
			}
		}
		img = rgba

	case "DeviceGray":
		expected := width * height
		if len(data) < expected {
			return nil, fmt.Errorf("insufficient data for gray image: got %d, want %d", len(data), expected)
		}
		gray := image.NewGray(image.Rect(0, 0, width, height))
		copy(gray.Pix, data[:expected])
		img = gray

	default:
		return nil, fmt.Errorf("unsupported color space: %s", colorSpace)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Package imaging validates uploaded project images and re-encodes them to
// lossy WebP with a bounded longer edge.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"sort"
	"strings"

	imgproc "github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/bmp"
)

const (
	DefaultMaxBytes = 10 << 20
	DefaultMaxEdge  = 1200
	Quality         = 85
	Extension       = ".webp"
	ContentType     = "image/webp"
)

// DefaultMaxPixels bounds decoded width*height, about 200MB as NRGBA.
const DefaultMaxPixels = 50_000_000

var allowedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {},
}

var allowedMIME = map[string]struct{}{
	"image/jpeg": {}, "image/png": {}, "image/gif": {}, "image/webp": {}, "image/bmp": {},
}

// ValidationError is a client mistake: wrong type, too large, undecodable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Pipeline holds the size limits.
type Pipeline struct {
	MaxBytes  int64
	MaxEdge   int
	MaxPixels int64
}

func New(maxBytes int64, maxEdge int, maxPixels int64) *Pipeline {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Pipeline{MaxBytes: maxBytes, MaxEdge: maxEdge, MaxPixels: maxPixels}
}

func sortedKeys(m map[string]struct{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// Validate checks the declared file name, MIME type and size. An empty or
// generic octet-stream MIME defers to the extension.
func (p *Pipeline) Validate(filename, contentType string, size int64) error {
	if strings.TrimSpace(filename) == "" {
		return &ValidationError{Reason: "no filename provided"}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return &ValidationError{Reason: "invalid file type. Allowed: " + sortedKeys(allowedExtensions)}
	}
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mime != "" && mime != "application/octet-stream" {
		if _, ok := allowedMIME[mime]; !ok {
			return &ValidationError{Reason: "invalid image type. Allowed: " + sortedKeys(allowedMIME)}
		}
	}
	if size > p.MaxBytes {
		return &ValidationError{Reason: fmt.Sprintf("file too large. Max size: %dMB", p.MaxBytes>>20)}
	}
	return nil
}

func isWebP(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WEBP"
}

func decodeConfig(data []byte) (image.Config, error) {
	if isWebP(data) {
		return webp.DecodeConfig(bytes.NewReader(data))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

// checkDimensions reads only the header so oversized canvases are refused
// before any pixel buffer is allocated.
func (p *Pipeline) checkDimensions(data []byte) error {
	cfg, err := decodeConfig(data)
	if err != nil {
		return &ValidationError{Reason: "failed to process image: " + err.Error()}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return &ValidationError{Reason: "failed to process image: empty image"}
	}
	if int64(cfg.Width)*int64(cfg.Height) > p.MaxPixels {
		return &ValidationError{Reason: fmt.Sprintf("image dimensions too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.MaxPixels)}
	}
	return nil
}

func decode(data []byte) (image.Image, error) {
	if isWebP(data) {
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// Transcode decodes data, flattens transparency onto white, fits the longer
// edge within MaxEdge and encodes lossy WebP.
func (p *Pipeline) Transcode(data []byte) ([]byte, error) {
	if int64(len(data)) > p.MaxBytes {
		return nil, &ValidationError{Reason: fmt.Sprintf("file too large. Max size: %dMB", p.MaxBytes>>20)}
	}
	if err := p.checkDimensions(data); err != nil {
		return nil, err
	}
	src, err := decode(data)
	if err != nil {
		return nil, &ValidationError{Reason: "failed to process image: " + err.Error()}
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &ValidationError{Reason: "failed to process image: empty image"}
	}

	flat := imgproc.Overlay(imgproc.New(b.Dx(), b.Dy(), color.White), src, image.Pt(0, 0), 1.0)
	var out image.Image = flat
	if b.Dx() > p.MaxEdge || b.Dy() > p.MaxEdge {
		out = imgproc.Fit(flat, p.MaxEdge, p.MaxEdge, imgproc.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, out, webp.Options{Quality: Quality, Method: 6}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

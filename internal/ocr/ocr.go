// Package ocr extracts raw text from receipt images.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrOCRFailed wraps any failure of the underlying OCR engine.
var ErrOCRFailed = errors.New("ocr failed")

// TextExtractor turns a receipt image on disk into raw text.
type TextExtractor interface {
	Extract(ctx context.Context, imagePath string) (text string, elapsed time.Duration, err error)
}

// Tesseract shells out to the tesseract binary. PSM 6 assumes a uniform
// block of text, which fits printed receipts.
type Tesseract struct {
	// Binary overrides the executable name, default "tesseract".
	Binary string
	// PSM is the page segmentation mode passed to tesseract.
	PSM int
}

var _ TextExtractor = (*Tesseract)(nil)

func NewTesseract() *Tesseract {
	return &Tesseract{Binary: "tesseract", PSM: 6}
}

func (t *Tesseract) Extract(ctx context.Context, imagePath string) (string, time.Duration, error) {
	binary := t.Binary
	if binary == "" {
		binary = "tesseract"
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, binary, imagePath, "stdout", "--psm", fmt.Sprint(t.PSM))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("%w: %v: %s", ErrOCRFailed, err, stderr.String())
	}
	elapsed := time.Since(start)

	slog.InfoContext(ctx, "OCR completed",
		"path", imagePath,
		"elapsed_ms", elapsed.Milliseconds(),
		"text_length", stdout.Len())
	if elapsed > 5*time.Second {
		slog.WarnContext(ctx, "OCR exceeded 5 second target",
			"path", imagePath, "elapsed_ms", elapsed.Milliseconds())
	}

	return stdout.String(), elapsed, nil
}

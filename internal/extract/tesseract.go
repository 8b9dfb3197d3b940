package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/config"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
)

// minOCRWidth is the width small images are upscaled to before OCR.
const minOCRWidth = 1500

// Runner executes an external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args and captures its output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Tesseract is the local OCR provider. It shells out to the tesseract CLI
// and reads word-level TSV output.
type Tesseract struct {
	binPath    string
	lang       string
	psm        int
	preprocess bool
	runner     Runner
	fetcher    *Fetcher
}

// NewTesseract creates a Tesseract provider. Empty settings fall back to
// "tesseract", "eng" and PSM 3.
func NewTesseract(cfg config.TesseractConfig, fetcher *Fetcher, runner Runner) *Tesseract {
	t := &Tesseract{
		binPath:    cfg.Path,
		lang:       cfg.Language,
		psm:        cfg.PSM,
		preprocess: cfg.Preprocess,
		runner:     runner,
		fetcher:    fetcher,
	}
	if t.binPath == "" {
		t.binPath = "tesseract"
	}
	if t.lang == "" {
		t.lang = "eng"
	}
	if t.psm <= 0 {
		t.psm = 3
	}
	if t.runner == nil {
		t.runner = ExecRunner{}
	}
	if t.fetcher == nil {
		t.fetcher = NewFetcher(nil)
	}
	return t
}

// Name implements Provider.
func (t *Tesseract) Name() string { return ProviderTesseract }

// IsAvailable reports whether the tesseract binary resolves.
func (t *Tesseract) IsAvailable() bool {
	_, err := exec.LookPath(t.binPath)
	return err == nil
}

// ExtractText implements Provider.
func (t *Tesseract) ExtractText(ctx context.Context, imageURL string) (*model.ExtractionResult, error) {
	img, err := t.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return nil, resilience.Classify(t.Name(), err)
	}

	path, cleanup, err := t.writeInput(img)
	if err != nil {
		return nil, resilience.Unavailable(t.Name(), err)
	}
	defer cleanup()

	stdout, stderr, err := t.runner.Run(ctx, t.binPath, path, "stdout",
		"--psm", strconv.Itoa(t.psm), "-l", t.lang, "tsv")
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, resilience.Timeout(t.Name(), ctx.Err())
		case errors.Is(err, exec.ErrNotFound):
			return nil, resilience.Unavailable(t.Name(), err)
		}
		return nil, resilience.Unavailable(t.Name(),
			eris.Wrapf(err, "extract: tesseract failed: %s", strings.TrimSpace(string(stderr))))
	}

	rec := Summarize(ParseTSV(string(stdout)), t.psm)
	return &model.ExtractionResult{
		Text:          rec.Text,
		Confidence:    rec.Confidence,
		Provider:      t.Name(),
		BoundingBoxes: rec.BoundingBoxes,
	}, nil
}

// writeInput stores the image in a temp file, preprocessed when enabled
// and decodable.
func (t *Tesseract) writeInput(img *Image) (string, func(), error) {
	f, err := os.CreateTemp("", "fieldsnap-ocr-*.png")
	if err != nil {
		return "", nil, eris.Wrap(err, "extract: create temp image")
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	data := img.Data
	if t.preprocess {
		if src, derr := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true)); derr == nil {
			var buf bytes.Buffer
			if eerr := imaging.Encode(&buf, Preprocess(src), imaging.PNG); eerr == nil {
				data = buf.Bytes()
			}
		} else {
			zap.L().Debug("extract: image not decodable, skipping preprocessing", zap.Error(derr))
		}
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, eris.Wrap(err, "extract: write temp image")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, eris.Wrap(err, "extract: close temp image")
	}
	return f.Name(), cleanup, nil
}

// Preprocess prepares an image for OCR: grayscale, upscale narrow images
// to minOCRWidth and sharpen.
func Preprocess(src image.Image) image.Image {
	out := imaging.Grayscale(src)
	if w := out.Bounds().Dx(); w > 0 && w < minOCRWidth {
		out = imaging.Resize(out, minOCRWidth, 0, imaging.Lanczos)
	}
	return imaging.Sharpen(out, 1.0)
}

package extract

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// maxImageBytes caps downloaded images.
const maxImageBytes = 20 << 20

// Image is fetched image content.
type Image struct {
	Data      []byte
	MediaType string
}

// Fetcher loads images from http(s) URLs, file:// URLs or local paths.
type Fetcher struct {
	http *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 30s-timeout default.
func NewFetcher(hc *http.Client) *Fetcher {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{http: hc}
}

// IsRemote reports whether imageURL is an http(s) URL.
func IsRemote(imageURL string) bool {
	lower := strings.ToLower(imageURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch reads the image at imageURL.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (*Image, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case IsRemote(imageURL):
		data, err = f.get(ctx, imageURL)
	case strings.HasPrefix(imageURL, "file://"):
		u, perr := url.Parse(imageURL)
		if perr != nil {
			return nil, eris.Wrapf(perr, "extract: parse image url %s", imageURL)
		}
		data, err = readFile(u.Path)
	default:
		data, err = readFile(imageURL)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, eris.Errorf("extract: empty image %s", imageURL)
	}
	return &Image{Data: data, MediaType: http.DetectContentType(data)}, nil
}

func (f *Fetcher) get(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "extract: create image request")
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: fetch image %s", imageURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("extract: fetch image %s: status %d", imageURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, eris.Wrap(err, "extract: read image body")
	}
	if len(data) > maxImageBytes {
		return nil, eris.Errorf("extract: image %s exceeds %d bytes", imageURL, maxImageBytes)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: stat image %s", path)
	}
	if info.Size() > maxImageBytes {
		return nil, eris.Errorf("extract: image %s exceeds %d bytes", path, maxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read image %s", path)
	}
	return data, nil
}

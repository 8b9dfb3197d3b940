package enrich

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/textparse"
)

// maxPageBytes caps how much of a homepage is read.
const maxPageBytes = 512 * 1024

// socialHosts maps a host suffix to the platform key stored on the lead.
var socialHosts = []struct {
	suffix   string
	platform string
}{
	{"facebook.com", "facebook"},
	{"fb.com", "facebook"},
	{"instagram.com", "instagram"},
	{"linkedin.com", "linkedin"},
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"youtube.com", "youtube"},
	{"tiktok.com", "tiktok"},
	{"yelp.com", "yelp"},
	{"nextdoor.com", "nextdoor"},
}

// sharePaths are links that post to a platform rather than identify a
// profile on it.
var sharePaths = []string{"/sharer", "/share", "/intent/", "/dialog/", "/plugins/"}

var hrefRe = regexp.MustCompile(`(?i)href\s*=\s*["']([^"'#\s>]+)["']`)

// SocialEnricher fetches the business homepage and collects links to its
// social profiles.
type SocialEnricher struct {
	client *http.Client
}

// NewSocialEnricher creates a SocialEnricher. A nil client gets a 15s
// timeout default.
func NewSocialEnricher(hc *http.Client) *SocialEnricher {
	if hc == nil {
		hc = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}
	return &SocialEnricher{client: hc}
}

// Name implements Enricher.
func (s *SocialEnricher) Name() string { return "social_scan" }

// EnrichBusiness implements Enricher. Without a website there is nothing
// to scan and the result is empty.
func (s *SocialEnricher) EnrichBusiness(ctx context.Context, q Query) (*model.Enrichment, error) {
	site := textparse.NormalizeWebsite(q.Website)
	if site == "" {
		return &model.Enrichment{}, nil
	}

	body, err := s.fetch(ctx, site)
	if err != nil {
		return nil, err
	}
	links := SocialLinks(body)
	if len(links) == 0 {
		return &model.Enrichment{}, nil
	}
	return &model.Enrichment{SocialMedia: links}, nil
}

func (s *SocialEnricher) fetch(ctx context.Context, site string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site, nil)
	if err != nil {
		return nil, eris.Wrap(err, "social: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; FieldSnapBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "social: fetch %s", site)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "social: read body")
	}
	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("social: %s blocked (%s)", site, kind)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("social: %s status %d", site, resp.StatusCode)
	}
	return body, nil
}

// SocialLinks returns the first profile link per platform found in an
// HTML page.
func SocialLinks(html []byte) map[string]string {
	out := make(map[string]string)
	for _, m := range hrefRe.FindAllSubmatch(html, -1) {
		raw := strings.TrimSpace(strings.ReplaceAll(string(m[1]), "&amp;", "&"))
		platform, link, ok := classifyLink(raw)
		if !ok {
			continue
		}
		if _, seen := out[platform]; !seen {
			out[platform] = link
		}
	}
	return out
}

// classifyLink returns the platform and the absolute link for a profile
// URL on a known social host.
func classifyLink(raw string) (string, string, bool) {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	path := strings.ToLower(u.Path)
	if path == "" || path == "/" {
		return "", "", false
	}
	for _, p := range sharePaths {
		if strings.HasPrefix(path, p) {
			return "", "", false
		}
	}
	for _, sh := range socialHosts {
		if host == sh.suffix || strings.HasSuffix(host, "."+sh.suffix) {
			return sh.platform, raw, true
		}
	}
	return "", "", false
}

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homepage = `<html><head><title>Acme Plumbing</title></head><body>
<a href="https://www.facebook.com/acmeplumbing">Facebook</a>
<a href="https://www.facebook.com/sharer/sharer.php?u=x">Share</a>
<a href='//instagram.com/acme.plumbing'>IG</a>
<a href="https://x.com/acmeplumbing">X</a>
<a href="https://twitter.com/intent/tweet?text=hi">Tweet</a>
<a href="https://www.linkedin.com/company/acme-plumbing/">LinkedIn</a>
<a href="https://www.yelp.com/biz/acme-plumbing-springfield">Yelp</a>
<a href="https://facebook.com/someoneelse">Second FB</a>
<a href="/contact">Contact</a>
<a href="https://box.com/files">Box</a>
</body></html>`

func TestSocialLinks(t *testing.T) {
	links := SocialLinks([]byte(homepage))
	assert.Equal(t, map[string]string{
		"facebook":  "https://www.facebook.com/acmeplumbing",
		"instagram": "https://instagram.com/acme.plumbing",
		"twitter":   "https://x.com/acmeplumbing",
		"linkedin":  "https://www.linkedin.com/company/acme-plumbing/",
		"yelp":      "https://www.yelp.com/biz/acme-plumbing-springfield",
	}, links)
}

func TestSocialEnricher_FetchesHomepage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "FieldSnapBot")
		_, _ = w.Write([]byte(homepage))
	}))
	defer srv.Close()

	res, err := NewSocialEnricher(srv.Client()).EnrichBusiness(context.Background(), Query{Website: srv.URL})
	require.NoError(t, err)
	assert.Len(t, res.SocialMedia, 5)
}

func TestSocialEnricher_NoWebsite(t *testing.T) {
	res, err := NewSocialEnricher(nil).EnrichBusiness(context.Background(), Query{Name: "Acme"})
	require.NoError(t, err)
	assert.Empty(t, res.SocialMedia)
}

func TestSocialEnricher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewSocialEnricher(srv.Client()).EnrichBusiness(context.Background(), Query{Website: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestSocialEnricher_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "abc")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Checking your browser"))
	}))
	defer srv.Close()

	_, err := NewSocialEnricher(srv.Client()).EnrichBusiness(context.Background(), Query{Website: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cloudflare")
}

func TestDetectBlock(t *testing.T) {
	ok := &http.Response{StatusCode: 200, Header: http.Header{}}

	blocked, kind := DetectBlock(ok, []byte(homepage))
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, kind)

	blocked, kind = DetectBlock(ok, []byte(`<div class="g-recaptcha"></div>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockCaptcha, kind)

	blocked, kind = DetectBlock(ok, []byte(`<noscript>Please enable JavaScript</noscript>`))
	assert.True(t, blocked)
	assert.Equal(t, BlockJSShell, kind)

	blocked, _ = DetectBlock(nil, nil)
	assert.False(t, blocked)
}

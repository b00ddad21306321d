package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
)

const (
	DefaultTimeout   = 12 * time.Second
	DefaultMaxBytes  = 3 << 20
	DefaultUserAgent = "Mozilla/5.0 (compatible; OrcaLeadBot/1.0; +https://orca.example/bot)"
)

var (
	ErrInvalidURL = errors.New("invalid_url")
	ErrFetch      = errors.New("fetch_failed")
	ErrNotFound   = errors.New("not_found")

	errBlockedAddr = errors.New("destination address not allowed")
)

// non-public ranges the netip predicates do not cover
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// Fetcher downloads and parses third-party article pages.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBytes     int64
	allowPrivate bool
}

type Option func(*Fetcher)

// AllowPrivateNetworks lets the fetcher dial loopback, private and
// link-local addresses.
func AllowPrivateNetworks() Option {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// NewFetcher returns a fetcher that only dials public addresses. The check
// runs on every dial, so redirects and re-resolved hostnames are covered.
func NewFetcher(timeout time.Duration, maxBytes int64, userAgent string, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	f := &Fetcher{userAgent: userAgent, maxBytes: maxBytes}
	for _, o := range opts {
		o(f)
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	if !f.allowPrivate {
		dialer.Control = publicOnly
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DialContext = dialer.DialContext
	f.client = &http.Client{Timeout: timeout, Transport: tr}
	return f
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !PublicAddr(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddr, ip)
	}
	return nil
}

// PublicAddr reports whether ip is a globally routable unicast address.
func PublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

// ParseTarget accepts only absolute http(s) URLs.
func ParseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// Page is a parsed document and the URL it was finally served from.
type Page struct {
	Doc  *html.Node
	Base *url.URL
}

func (f *Fetcher) Fetch(ctx context.Context, raw string) (Page, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("%w: upstream status %d", ErrFetch, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("%w: parse: %v", ErrFetch, err)
	}

	base := target
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	return Page{Doc: doc, Base: base}, nil
}

// Image returns the absolute lead image URL of the article at raw.
func (f *Fetcher) Image(ctx context.Context, raw string) (string, error) {
	p, err := f.Fetch(ctx, raw)
	if err != nil {
		return "", err
	}
	img := ImageURL(p.Doc, p.Base)
	if img == "" {
		return "", ErrNotFound
	}
	return img, nil
}

// Content returns the cleaned main content of the article at raw.
func (f *Fetcher) Content(ctx context.Context, raw string) (Article, error) {
	p, err := f.Fetch(ctx, raw)
	if err != nil {
		return Article{}, err
	}
	a, ok := Extract(p.Doc, p.Base)
	if !ok {
		return Article{}, ErrNotFound
	}
	return a, nil
}

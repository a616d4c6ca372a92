package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/adbazaar/internal/config"
)

const (
	maxLandingHeadings = 6
	maxLandingText     = 600
	maxLandingRedirect = 5
)

var errBlockedAddress = errors.New("address is not publicly routable")

var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// LandingPage is the part of an advertiser's page that feeds the ad copy prompt.
type LandingPage struct {
	URL         string
	Title       string
	Description string
	Headings    []string
	Text        string
}

type LandingFetcher struct {
	httpClient *http.Client
}

// NewLandingFetcher returns a fetcher that only connects to public
// addresses. The check runs on every dial, so redirects and DNS answers
// pointing inside the network are refused too.
func NewLandingFetcher() *LandingFetcher {
	return newLandingFetcher(false)
}

func newLandingFetcher(allowPrivate bool) *LandingFetcher {
	dialer := &net.Dialer{Timeout: config.LandingFetchTimeout}
	if !allowPrivate {
		dialer.Control = refusePrivateDial
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &LandingFetcher{httpClient: &http.Client{
		Timeout:       config.LandingFetchTimeout,
		Transport:     transport,
		CheckRedirect: checkLandingRedirect,
	}}
}

func refusePrivateDial(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	if !publicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ap.Addr())
	}
	return nil
}

func checkLandingRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxLandingRedirect {
		return fmt.Errorf("stopped after %d redirects", maxLandingRedirect)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	return nil
}

// publicAddr reports whether addr is a globally routable unicast address.
func publicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		addr.IsGlobalUnicast() &&
		!addr.IsPrivate() &&
		!sharedAddressSpace.Contains(addr)
}

// blockedHost catches hosts that can never be public before any lookup.
func blockedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return !publicAddr(addr)
	}
	return false
}

func (f *LandingFetcher) Fetch(ctx context.Context, pageURL string) (*LandingPage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "adbazaar-copybot/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch landing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch landing page: status %d", resp.StatusCode)
	}

	return ParseLandingPage(pageURL, io.LimitReader(resp.Body, config.LandingMaxBytes))
}

// ParseLandingPage extracts title, meta description, headings and the first
// paragraph text from an HTML document.
func ParseLandingPage(pageURL string, r io.Reader) (*LandingPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}

	page := &LandingPage{URL: pageURL}

	page.Title = collapseSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && page.Title == "" {
		page.Title = collapseSpace(og)
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Description = collapseSpace(desc)
	}
	if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && page.Description == "" {
		page.Description = collapseSpace(og)
	}

	doc.Find("h1, h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h := collapseSpace(sel.Text()); h != "" {
			page.Headings = append(page.Headings, h)
		}
		return len(page.Headings) < maxLandingHeadings
	})

	var text strings.Builder
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if p := collapseSpace(sel.Text()); p != "" {
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(p)
		}
		return text.Len() < maxLandingText
	})
	page.Text = truncateRunes(text.String(), maxLandingText)

	return page, nil
}

// promptBlock renders the page for inclusion in a prompt.
func (p *LandingPage) promptBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Landing page: %s\n", p.URL)
	if p.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", p.Title)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "Page description: %s\n", p.Description)
	}
	if len(p.Headings) > 0 {
		fmt.Fprintf(&b, "Headings: %s\n", strings.Join(p.Headings, " | "))
	}
	if p.Text != "" {
		fmt.Fprintf(&b, "Excerpt: %s\n", p.Text)
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

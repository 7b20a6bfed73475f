package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	neturl "net/url"
	"syscall"
	"time"

	"pdfservice/internal/domain"
	"pdfservice/internal/markup"
)

// DefaultMaxBytes caps a single fetched resource.
const DefaultMaxBytes = 10 << 20

// ErrBlockedAddress is returned when a URL resolves to a loopback, private, link-local or
// otherwise non-public address.
var ErrBlockedAddress = errors.New("address not allowed")

// sharedAddressSpace is the carrier-grade NAT range of RFC 6598.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// HTTPFetcher downloads images over HTTP(S).
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// New returns an HTTPFetcher whose requests time out after timeout. Its client only connects to
// public addresses; redirects are checked the same way since every connection is dialed anew.
func New(timeout time.Duration) *HTTPFetcher {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: publicOnly,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialed instead of the target and defeat the address check.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout, Transport: transport},
		MaxBytes: DefaultMaxBytes,
	}
}

// publicOnly is a net.Dialer Control hook. It runs after name resolution, so address is the
// IP actually being connected to.
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	case ip.Is4() && sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}

// Fetch implements markup.Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (markup.Resource, error) {
	parsed, err := neturl.Parse(url)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return markup.Resource{}, fmt.Errorf("%w: unsupported url %q", domain.ErrFetch, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return markup.Resource{}, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return markup.Resource{}, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return markup.Resource{}, fmt.Errorf("%w: %s returned %d", domain.ErrFetch, url, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return markup.Resource{}, fmt.Errorf("%w: read %s: %v", domain.ErrFetch, url, err)
	}
	if int64(len(data)) > limit {
		return markup.Resource{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrFetch, url, limit)
	}

	return markup.Resource{Data: data, MIMEType: mimeType(resp.Header.Get("Content-Type"), data)}, nil
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

// mimeType prefers the declared media type and sniffs the body otherwise.
func mimeType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

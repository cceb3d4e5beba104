package scene

import (
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

// NewHTTPClient builds the client shared by scene requests and image downloads.
// proxyURL may be empty, an http(s) proxy, or a socks5 proxy ("socks" is accepted).
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy url '%s': %w", proxyURL, err)
		}

		switch u.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			if u.Scheme == "socks" {
				u.Scheme = "socks5"
			}
			dialer, err := proxy.FromURL(u, &net.Dialer{})
			if err != nil {
				return nil, fmt.Errorf("failed to build proxy dialer for '%s': %w", proxyURL, err)
			}
			contextDialer, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("proxy dialer for '%s' does not support contexts", proxyURL)
			}
			transport.Proxy = nil
			transport.DialContext = contextDialer.DialContext
		}
	}

	return &http.Client{Transport: transport}, nil
}

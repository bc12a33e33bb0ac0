package load

import (
	"net"
	"net/http"
	"time"

	"github.com/stacklok/pgsearch-sync/internal/versions"
)

const (
	dialTimeout           = 5 * time.Second
	responseHeaderTimeout = 30 * time.Second
)

// UserAgent is sent with every request to the cluster
var UserAgent = "pgsearch-sync/" + versions.Version

// userAgentTransport stamps requests with UserAgent
type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", UserAgent)
	return t.next.RoundTrip(req)
}

// newTransport bounds connection setup and the wait for response headers.
// Bulk bodies can be large, so there is no overall request timeout.
func newTransport() http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	base.ResponseHeaderTimeout = responseHeaderTimeout
	return &userAgentTransport{next: base}
}

package auth

import (
	"fmt"
	"net/http"
	"os"

	"github.com/Azure/go-ntlmssp"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// Environment variables holding PI Web API credentials.
const (
	EnvUser       = "PIWEBAPI_USER"
	EnvPass       = "PIWEBAPI_PASS"
	EnvDomainUser = "PIWEBAPI_DOMAIN_USER"
	EnvDomainPass = "PIWEBAPI_DOMAIN_PASS"
)

// Credential configures HTTP requests for a site. Resolved once per fetch
// and shared read-only across every session of that fetch; implementations
// must be safe for concurrent use.
type Credential interface {
	// Apply sets request-level auth (headers / basic auth).
	Apply(req *http.Request)
	// Transport wraps the base transport when the scheme negotiates at the
	// connection level; otherwise it returns base unchanged.
	Transport(base http.RoundTripper) http.RoundTripper
}

// Basic is a username/password credential pair.
type Basic struct {
	User string
	Pass string
}

func (b Basic) Apply(req *http.Request) {
	req.SetBasicAuth(b.User, b.Pass)
}

func (b Basic) Transport(base http.RoundTripper) http.RoundTripper { return base }

// Integrated performs NTLM/Negotiate auth at the transport level. With
// empty credentials the negotiator falls through to single sign-on.
type Integrated struct {
	User string
	Pass string
}

func (i Integrated) Apply(req *http.Request) {
	if i.User != "" {
		req.SetBasicAuth(i.User, i.Pass)
	}
}

func (i Integrated) Transport(base http.RoundTripper) http.RoundTripper {
	return ntlmssp.Negotiator{RoundTripper: base}
}

// Resolve returns the credential for a site. Basic auth reads the
// username/password pair from the environment and fails when either is
// absent; integrated auth never consults mandatory environment state.
func Resolve(site config.SiteConfig) (Credential, error) {
	if !site.BasicAuth() {
		return Integrated{
			User: os.Getenv(EnvDomainUser),
			Pass: os.Getenv(EnvDomainPass),
		}, nil
	}

	user, pass := os.Getenv(EnvUser), os.Getenv(EnvPass)
	if user == "" || pass == "" {
		return nil, fmt.Errorf("%w: BASIC auth requires %s and %s environment variables",
			model.ErrConfiguration, EnvUser, EnvPass)
	}
	return Basic{User: user, Pass: pass}, nil
}

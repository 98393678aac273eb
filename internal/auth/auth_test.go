package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

func TestResolve_Basic(t *testing.T) {
	t.Setenv(EnvUser, "svc-pi")
	t.Setenv(EnvPass, "s3cret")

	cred, err := Resolve(config.SiteConfig{Auth: config.AuthBasic})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "https://example.com/piwebapi", nil)
	cred.Apply(req)
	user, pass, ok := req.BasicAuth()
	if !ok || user != "svc-pi" || pass != "s3cret" {
		t.Fatalf("unexpected basic auth: %q %q %v", user, pass, ok)
	}
}

func TestResolve_BasicMissingCredentials(t *testing.T) {
	t.Setenv(EnvUser, "")
	t.Setenv(EnvPass, "")

	_, err := Resolve(config.SiteConfig{Auth: config.AuthBasic})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestResolve_BasicMissingPasswordOnly(t *testing.T) {
	t.Setenv(EnvUser, "svc-pi")
	t.Setenv(EnvPass, "")

	if _, err := Resolve(config.SiteConfig{Auth: config.AuthBasic}); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestResolve_Integrated(t *testing.T) {
	t.Setenv(EnvDomainUser, "")
	t.Setenv(EnvDomainPass, "")

	cred, err := Resolve(config.SiteConfig{Auth: config.AuthIntegrated})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// SSO path: no request-level auth header.
	req, _ := http.NewRequest(http.MethodGet, "https://example.com/piwebapi", nil)
	cred.Apply(req)
	if _, _, ok := req.BasicAuth(); ok {
		t.Fatal("expected no basic auth header for SSO integrated credential")
	}

	// The negotiating transport must wrap the base.
	base := http.DefaultTransport
	if cred.Transport(base) == base {
		t.Fatal("expected integrated credential to wrap the transport")
	}
}

func TestResolve_IntegratedNeverRequiresEnv(t *testing.T) {
	t.Setenv(EnvUser, "")
	t.Setenv(EnvPass, "")

	// Anything other than BASIC resolves as integrated.
	if _, err := Resolve(config.SiteConfig{Auth: "KERBEROS"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package facilitator

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// JOSEAuthorizationProvider signs a short-lived JWT bearer token for every
// facilitator request, using a PEM-encoded ECDSA or Ed25519 key. It plugs in
// directly as an http.AuthorizationProvider for facilitator deployments that
// require signed bearer auth rather than a static API key.
type JOSEAuthorizationProvider struct {
	issuer     string
	subject    string
	privateKey interface{}
	ttl        time.Duration
}

// NewJOSEAuthorizationProvider parses pemKey and returns a provider that
// signs JWTs with issuer/subject claims and the given lifetime. pemKey must
// be a PEM-encoded EC private key or a PKCS8-encoded ECDSA/Ed25519 key.
func NewJOSEAuthorizationProvider(issuer, subject, pemKey string, ttl time.Duration) (*JOSEAuthorizationProvider, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, fmt.Errorf("decode PEM block: invalid PEM format")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		privateKey, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
	}

	switch privateKey.(type) {
	case *ecdsa.PrivateKey:
	case ed25519.PrivateKey:
	default:
		return nil, fmt.Errorf("unsupported private key type: must be ECDSA or Ed25519")
	}

	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	return &JOSEAuthorizationProvider{
		issuer:     issuer,
		subject:    subject,
		privateKey: privateKey,
		ttl:        ttl,
	}, nil
}

// Authorize satisfies http.AuthorizationProvider: it signs a fresh JWT and
// returns the Bearer header value the facilitator request should carry.
func (p *JOSEAuthorizationProvider) Authorize(ctx context.Context) (string, error) {
	var alg jose.SignatureAlgorithm
	switch p.privateKey.(type) {
	case *ecdsa.PrivateKey:
		alg = jose.ES256
	default:
		alg = jose.EdDSA
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: alg, Key: p.privateKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("create JWT signer: %w", err)
	}

	now := time.Now()
	claims := &jwt.Claims{
		Issuer:    p.issuer,
		Subject:   p.subject,
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(p.ttl)),
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize JWT: %w", err)
	}

	return "Bearer " + token, nil
}

package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer signs claim sets into compact JWTs under a single key pair.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// NewSigner loads a PKCS8 PEM private key and returns a Signer for the given
// algorithm. The key type must match the algorithm.
func NewSigner(algorithm, kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}

	switch algorithm {
	case AlgorithmRS256:
		key, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: RS256 requires an RSA private key")
		}
		if key.N.BitLen() < 2048 {
			return nil, errors.New("jwtx: RSA key below 2048 bits")
		}
		return &signer{kid: kid, method: jwt.SigningMethodRS256, key: key, jwk: NewRSAJWK(kid, AlgorithmRS256, &key.PublicKey)}, nil

	case AlgorithmES256:
		key, ok := priv.(*ecdsa.PrivateKey)
		if !ok || key.Curve != elliptic.P256() {
			return nil, errors.New("jwtx: ES256 requires an ECDSA P-256 private key")
		}
		return &signer{kid: kid, method: jwt.SigningMethodES256, key: key, jwk: NewES256JWK(kid, &key.PublicKey)}, nil

	case AlgorithmEdDSA:
		key, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: EdDSA requires an Ed25519 private key")
		}
		return &signer{kid: kid, method: jwt.SigningMethodEdDSA, key: key, jwk: NewEd25519JWK(kid, key.Public().(ed25519.PublicKey))}, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", algorithm)
	}
}

type signer struct {
	kid    string
	method jwt.SigningMethod
	key    any
	jwk    JWK
}

func (s *signer) Alg() string { return s.method.Alg() }
func (s *signer) KID() string { return s.kid }

func (s *signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *signer) PublicJWK() JWK { return s.jwk }

func parsePKCS8(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PKCS8 PRIVATE KEY block, got %q", block.Type)
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}

package token

import (
	"context"
	"crypto"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
)

// Verifier checks the signature of a raw token.
type Verifier interface {
	Verify(ctx context.Context, raw string) error
}

// KeySetVerifier verifies token signatures against an OIDC key set.
type KeySetVerifier struct {
	keySet oidc.KeySet
}

var _ Verifier = (*KeySetVerifier)(nil)

// NewKeySetVerifier wraps an existing key set.
func NewKeySetVerifier(keySet oidc.KeySet) *KeySetVerifier {
	return &KeySetVerifier{keySet: keySet}
}

// NewRemoteVerifier fetches and caches the keys published at jwksURL.
// ctx bounds background key refreshes, not a single verification.
func NewRemoteVerifier(ctx context.Context, jwksURL string) *KeySetVerifier {
	return NewKeySetVerifier(oidc.NewRemoteKeySet(ctx, jwksURL))
}

// NewStaticVerifier verifies against a fixed set of public keys.
func NewStaticVerifier(keys ...crypto.PublicKey) *KeySetVerifier {
	return NewKeySetVerifier(&oidc.StaticKeySet{PublicKeys: keys})
}

func (v *KeySetVerifier) Verify(ctx context.Context, raw string) error {
	if _, err := v.keySet.VerifySignature(ctx, raw); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidToken, "[KeySetVerifier.Verify] %v", err)
	}
	return nil
}

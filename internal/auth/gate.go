// Package auth implements the AuthGate: request-level signature
// verification and signer/profile lookup, attaching identity to the
// downstream request context.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"log"
	"net/http"
	"strconv"
	"time"

	"hubgateway/internal/models"
)

const (
	headerKeyHex = "key_hex"
	headerSig    = "sig"
	headerTS     = "timestamp"
	headerExtra  = "extra_sig_data_hex"
)

// SignerLookup is the narrow capability the gate needs from SignerRepository.
// Lookup is read-only; the gate never creates placeholder users.
type SignerLookup interface {
	GetSigner(ctx context.Context, pk []byte) (*models.Signer, error)
}

// ProfileFetcher is the narrow capability the gate needs from
// UserRepository, used in read-through mode (force_fetch=false).
type ProfileFetcher interface {
	GetUserProfile(ctx context.Context, fid uint64, forceFetch bool) (models.Profile, error)
}

// Identity is attached to the request context on a successful pipeline run.
type Identity struct {
	Profile models.Profile
	Signer  models.Signer
}

type ctxKey struct{}

// FromContext retrieves the Identity a Gate attached to r's context.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity attaches id to ctx the same way Middleware does on a
// successful pipeline run. Exposed so downstream handler tests can
// exercise post-gate behavior directly, without re-deriving a signed
// request for every case.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Gate is the AuthGate middleware factory.
type Gate struct {
	Signers         SignerLookup
	Profiles        ProfileFetcher
	FreshnessWindow time.Duration // 0 disables the freshness check
}

// NewGate builds a Gate. freshnessWindow bounds |now - timestamp| on
// every request; 0 disables the check.
func NewGate(signers SignerLookup, profiles ProfileFetcher, freshnessWindow time.Duration) *Gate {
	return &Gate{Signers: signers, Profiles: profiles, FreshnessWindow: freshnessWindow}
}

// reject is the single observable failure mode of the gate: every internal
// branch (bad headers, unknown signer, revoked signer, bad signature,
// upstream/storage failure) collapses to one HTTP code at the boundary, so
// a client cannot probe which precondition failed. The concrete reason is
// only ever logged.
func reject(w http.ResponseWriter, reason string) {
	log.Printf("authgate: rejecting request: %s", reason)
	w.WriteHeader(http.StatusBadRequest)
}

// Middleware returns the http middleware running the validation pipeline:
// parse headers, look up the signer, check it is active, verify the
// signature, fetch the profile, attach the identity.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyHex := r.Header.Get(headerKeyHex)
		sigHex := r.Header.Get(headerSig)
		tsHeader := r.Header.Get(headerTS)
		if keyHex == "" || sigHex == "" || tsHeader == "" {
			reject(w, "missing required header")
			return
		}

		pubKey, err := hex.DecodeString(keyHex)
		if err != nil || len(pubKey) != PublicKeyLength {
			reject(w, "malformed key_hex")
			return
		}
		sig, err := hex.DecodeString(sigHex)
		if err != nil || len(sig) != SignatureLength {
			reject(w, "malformed sig")
			return
		}
		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			reject(w, "malformed timestamp")
			return
		}

		var extra []byte
		if extraHex := r.Header.Get(headerExtra); extraHex != "" {
			extra, err = hex.DecodeString(extraHex)
			if err != nil {
				reject(w, "malformed extra_sig_data_hex")
				return
			}
		}

		if g.FreshnessWindow > 0 {
			now := time.Now().Unix()
			delta := now - ts
			if delta < 0 {
				delta = -delta
			}
			if time.Duration(delta)*time.Second > g.FreshnessWindow {
				reject(w, "stale timestamp")
				return
			}
		}

		ctx := r.Context()
		signer, err := g.Signers.GetSigner(ctx, pubKey)
		if err != nil {
			reject(w, "signer lookup failed: "+err.Error())
			return
		}
		if signer == nil {
			reject(w, "unknown signer")
			return
		}
		if !signer.Active {
			reject(w, "revoked signer")
			return
		}

		msg := CanonicalHash(pubKey, []byte(tsHeader), extra)
		if !ed25519.Verify(ed25519.PublicKey(pubKey), msg[:], sig) {
			reject(w, "signature verification failed")
			return
		}

		profile, err := g.Profiles.GetUserProfile(ctx, uint64(signer.FID), false)
		if err != nil {
			reject(w, "profile fetch failed: "+err.Error())
			return
		}

		id := Identity{Profile: profile, Signer: *signer}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKey{}, id)))
	})
}

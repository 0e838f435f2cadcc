package jwtsigner

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize         = 32
	minSecretLength = 16
	hkdfInfoPrefix  = "linkauth session key "
)

var (
	ErrEmptyRing   = errors.New("jwtsigner: no keys configured")
	ErrUnknownKey  = errors.New("jwtsigner: unknown key id")
	ErrWeakSecret  = errors.New("jwtsigner: secret too short")
	ErrMalformed   = errors.New("jwtsigner: malformed key entry")
	ErrDuplicateID = errors.New("jwtsigner: duplicate key id")
)

// Ring holds HS256 keys by kid. The first key signs; every key verifies, so a
// new key can be prepended while credentials signed by older ones stay valid.
type Ring struct {
	active string
	keys   map[string][]byte
	order  []string
}

// ParseRing parses "kid:secret,kid:secret" with the active key first.
func ParseRing(list string) (*Ring, error) {
	r := &Ring{keys: map[string][]byte{}}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, secret, ok := strings.Cut(entry, ":")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformed, kid)
		}
		if err := r.Add(kid, []byte(secret)); err != nil {
			return nil, err
		}
	}
	if len(r.order) == 0 {
		return nil, ErrEmptyRing
	}
	return r, nil
}

// Add derives the signing key for kid. The first key added becomes active.
func (r *Ring) Add(kid string, secret []byte) error {
	if r.keys == nil {
		r.keys = map[string][]byte{}
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("%w: kid %q", ErrWeakSecret, kid)
	}
	if _, dup := r.keys[kid]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateID, kid)
	}
	key, err := derive(kid, secret)
	if err != nil {
		return err
	}
	r.keys[kid] = key
	r.order = append(r.order, kid)
	if r.active == "" {
		r.active = kid
	}
	return nil
}

func derive(kid string, secret []byte) ([]byte, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte(hkdfInfoPrefix+kid))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key %q: %w", kid, err)
	}
	return key, nil
}

func (r *Ring) ActiveKeyID() string { return r.active }

// KeyIDs lists the configured kids, active first.
func (r *Ring) KeyIDs() []string { return append([]string(nil), r.order...) }

// Sign issues an HS256 JWT with the active key and stamps its kid header.
func (r *Ring) Sign(claims jwt.Claims) (string, error) {
	key, ok := r.keys[r.active]
	if !ok {
		return "", ErrEmptyRing
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t.Header["kid"] = r.active
	return t.SignedString(key)
}

// Keyfunc resolves the verification key from the token's kid header.
func (r *Ring) Keyfunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	key, ok := r.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return key, nil
}

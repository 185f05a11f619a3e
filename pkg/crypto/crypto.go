// Package crypto holds the nostr identity used to sign alerts and epoch
// summaries.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

var ErrInvalidSecretKey = errors.New("invalid nostr secret key")

// KeyPair holds the hex and bech32 forms of a nostr identity.
type KeyPair struct {
	PrivateKeyHex    string
	PrivateKeyBech32 string // nsec
	PublicKeyHex     string
	PublicKeyBech32  string // npub
}

// ParseKeyPair accepts a 64 character hex secret or an nsec.
func ParseKeyPair(secretKey string) (*KeyPair, error) {
	skHex, err := secretHex(secretKey)
	if err != nil {
		return nil, err
	}

	pubHex, err := nostr.GetPublicKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	nsec, err := nip19.EncodePrivateKey(skHex)
	if err != nil {
		return nil, fmt.Errorf("encode nsec: %w", err)
	}
	npub, err := nip19.EncodePublicKey(pubHex)
	if err != nil {
		return nil, fmt.Errorf("encode npub: %w", err)
	}

	return &KeyPair{
		PrivateKeyHex:    skHex,
		PrivateKeyBech32: nsec,
		PublicKeyHex:     pubHex,
		PublicKeyBech32:  npub,
	}, nil
}

func secretHex(secretKey string) (string, error) {
	if len(secretKey) == 64 {
		if _, err := hex.DecodeString(secretKey); err != nil {
			return "", fmt.Errorf("%w: not hex", ErrInvalidSecretKey)
		}
		return secretKey, nil
	}

	prefix, sk, err := nip19.Decode(secretKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	if prefix != "nsec" {
		return "", fmt.Errorf("%w: expected nsec, got %s", ErrInvalidSecretKey, prefix)
	}
	switch v := sk.(type) {
	case string:
		return v, nil
	case []byte:
		return hex.EncodeToString(v), nil
	default:
		return "", fmt.Errorf("%w: unexpected nsec payload %T", ErrInvalidSecretKey, sk)
	}
}

// Sign stamps ev with the public key, then computes its ID and signature.
func (k *KeyPair) Sign(ev *nostr.Event) error {
	ev.PubKey = k.PublicKeyHex
	if err := ev.Sign(k.PrivateKeyHex); err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	return nil
}

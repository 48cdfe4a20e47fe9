// Package crypto signs evidence records with ed25519 keys.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Alg is the only supported signature algorithm.
const Alg = "ed25519"

// Signature is a detached signature over a payload.
type Signature struct {
	Alg      string `json:"alg"`
	PubKeyID string `json:"pubkey_id"`
	Sig      string `json:"sig"`
}

// Validate checks the signature fields are populated.
func (s *Signature) Validate() error {
	switch {
	case s == nil:
		return errors.New("signature required")
	case s.Alg != Alg:
		return fmt.Errorf("unsupported signature alg %q", s.Alg)
	case strings.TrimSpace(s.PubKeyID) == "":
		return errors.New("pubkey_id required")
	case s.Sig == "":
		return errors.New("sig required")
	}
	return nil
}

// Signer holds a key pair loaded from a key directory.
type Signer struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	KeyID      string
	keyDir     string
}

// NewSigner loads keyDir/keyID.key, generating it when missing.
func NewSigner(keyDir, keyID string) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("key id required")
	}
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return nil, err
	}

	keyPath := filepath.Join(keyDir, keyID+".key")
	privateKey, err := readPrivateKey(keyPath)
	if errors.Is(err, os.ErrNotExist) {
		_, privateKey, err = ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, privateKey, 0o600); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &Signer{
		PrivateKey: privateKey,
		PublicKey:  privateKey.Public().(ed25519.PublicKey),
		KeyID:      keyID,
		keyDir:     keyDir,
	}, nil
}

// Sign returns a detached signature over data.
func (s *Signer) Sign(data []byte) *Signature {
	return &Signature{
		Alg:      Alg,
		PubKeyID: s.KeyID,
		Sig:      base64.StdEncoding.EncodeToString(ed25519.Sign(s.PrivateKey, data)),
	}
}

// Verify checks sig against data using the key named by sig.PubKeyID in keyDir.
func Verify(keyDir string, data []byte, sig *Signature) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Sig)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	priv, err := readPrivateKey(filepath.Join(keyDir, sig.PubKeyID+".key"))
	if err != nil {
		return err
	}
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), data, raw) {
		return errors.New("invalid signature")
	}
	return nil
}

func readPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%s: invalid private key size", path)
	}
	return ed25519.PrivateKey(data), nil
}

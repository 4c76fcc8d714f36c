package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const signingKeyBits = 2048

// KeyProvider owns the RSA keypair used to sign and verify session tokens.
// Key material lives as PEM files under the module storage directory and is
// loaded lazily under a mutex; the recreate flag regenerates the pair on
// first use, renaming any existing files to *.bak instead of destroying them.
type KeyProvider struct {
	dir      string
	recreate bool

	mu   sync.Mutex
	priv *rsa.PrivateKey
	pub  *rsa.PublicKey
}

// NewKeyProvider constructs a provider over dir. Nothing touches the disk
// until Keys is first called.
func NewKeyProvider(dir string, recreate bool) *KeyProvider {
	return &KeyProvider{dir: dir, recreate: recreate}
}

// Keys returns the signing keypair, initializing it on first call.
func (p *KeyProvider) Keys() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.priv != nil {
		return p.priv, p.pub, nil
	}
	if err := p.load(); err != nil {
		return nil, nil, err
	}
	return p.priv, p.pub, nil
}

func (p *KeyProvider) load() error {
	privPath := filepath.Join(p.dir, "private.pem")
	pubPath := filepath.Join(p.dir, "public.pem")

	if p.recreate {
		if err := backupIfExists(privPath); err != nil {
			return err
		}
		if err := backupIfExists(pubPath); err != nil {
			return err
		}
		p.recreate = false
		return p.generate(privPath, pubPath)
	}

	privExists := fileExists(privPath)
	pubExists := fileExists(pubPath)
	switch {
	case privExists && pubExists:
		return p.read(privPath, pubPath)
	case !privExists && !pubExists:
		return p.generate(privPath, pubPath)
	default:
		return errors.New("auth: one of the signing key files is missing")
	}
}

func (p *KeyProvider) generate(privPath, pubPath string) error {
	key, err := rsa.GenerateKey(rand.Reader, signingKeyBits)
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
		return err
	}
	p.priv = key
	p.pub = &key.PublicKey
	return nil
}

func (p *KeyProvider) read(privPath, pubPath string) error {
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		return err
	}
	pubPEM, err := os.ReadFile(pubPath)
	if err != nil {
		return err
	}
	priv, err := parseRSAPrivateKey(privPEM)
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublicKey(pubPEM)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	p.priv = priv
	p.pub = pub
	return nil
}

func backupIfExists(path string) error {
	if !fileExists(path) {
		return nil
	}
	return os.Rename(path, path+".bak")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func parseRSAPrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("invalid PEM private key")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("unsupported private key type")
	default:
		return nil, fmt.Errorf("unsupported private key type %s", block.Type)
	}
}

func parseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("invalid PEM public key")
	}
	switch block.Type {
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("not an RSA public key")
		}
		return rsaKey, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported public key type %s", block.Type)
	}
}

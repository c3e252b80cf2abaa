package services

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	vapidPrivateFile = "vapid_private.pem"
	vapidPublicFile  = "vapid_public.txt"
)

// VAPIDManager lazily provisions the web-push signing key pair and keeps it
// stable across restarts via two artifacts on disk: the private key as a
// PKCS#8 PEM and the public key in the URL-safe form browsers expect.
// Rotating the key silently would orphan every existing subscription, so an
// existing private key file is always loaded, never replaced.
type VAPIDManager struct {
	dir string

	mu         sync.Mutex
	privateKey *ecdsa.PrivateKey
	publicKey  string // base64url, uncompressed P-256 point
}

// NewVAPIDManager creates a manager persisting key artifacts under dir
func NewVAPIDManager(dir string) *VAPIDManager {
	return &VAPIDManager{dir: dir}
}

// PublicKey returns the application server key handed to browsers when they
// subscribe, generating and persisting a fresh pair on first use.
func (m *VAPIDManager) PublicKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLocked(); err != nil {
		return "", err
	}
	return m.publicKey, nil
}

// SigningKeys returns the pair in the form the web-push signer consumes:
// both halves as unpadded URL-safe base64.
func (m *VAPIDManager) SigningKeys() (publicKey, privateKey string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLocked(); err != nil {
		return "", "", err
	}

	d := m.privateKey.D.Bytes()
	scalar := make([]byte, 32)
	copy(scalar[32-len(d):], d)
	return m.publicKey, base64.RawURLEncoding.EncodeToString(scalar), nil
}

func (m *VAPIDManager) ensureLocked() error {
	if m.privateKey != nil {
		return nil
	}

	privPath := filepath.Join(m.dir, vapidPrivateFile)
	pubPath := filepath.Join(m.dir, vapidPublicFile)

	key, err := readPrivateKey(privPath)
	if os.IsNotExist(err) {
		key, err = generatePrivateKey(privPath)
	}
	if err != nil {
		return err
	}

	pub := encodePublicKey(&key.PublicKey)

	// The public artifact is derived from the private key
	if onDisk, err := os.ReadFile(pubPath); err != nil || strings.TrimSpace(string(onDisk)) != pub {
		if err := os.WriteFile(pubPath, []byte(pub), 0o644); err != nil {
			return fmt.Errorf("failed to write public key: %w", err)
		}
	}

	m.privateKey = key
	m.publicKey = pub
	return nil
}

func readPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type in %s", path)
	}
	return key, nil
}

func generatePrivateKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate VAPID key: %w", err)
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode VAPID key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	log.Printf("🔑 [PUSH] Generated new VAPID key pair in %s", filepath.Dir(path))
	return key, nil
}

// encodePublicKey serializes a P-256 public key as the uncompressed point in
// unpadded URL-safe base64, the applicationServerKey format of the Push API.
func encodePublicKey(pub *ecdsa.PublicKey) string {
	point := elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)
	return base64.RawURLEncoding.EncodeToString(point)
}

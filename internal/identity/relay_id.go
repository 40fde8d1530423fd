package identity

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// RelayIDFileName is the name of the file in the data directory holding the relay key
const RelayIDFileName = "relay_id.key"

// RelayIdentity holds the relay's secp256k1 identity. PublicKey is the
// x-only hex key advertised in the relay information document.
type RelayIdentity struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"-"`
	RelayID    string `json:"relay_id"` // Human-readable relay ID
}

// GenerateRelayIdentity creates a new random relay identity.
func GenerateRelayIdentity() (*RelayIdentity, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return fromPrivateKey(priv), nil
}

// FromSecretKey derives the identity from a 64-char hex secret key.
func FromSecretKey(secretHex string) (*RelayIdentity, error) {
	secretHex = strings.TrimSpace(secretHex)
	if len(secretHex) != 64 {
		return nil, fmt.Errorf("secret key must be 64 hex characters, got %d", len(secretHex))
	}
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("secret key is not valid hex: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("secret key is zero")
	}
	return fromPrivateKey(priv), nil
}

func fromPrivateKey(priv *btcec.PrivateKey) *RelayIdentity {
	pubKeyHex := hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	return &RelayIdentity{
		PublicKey:  pubKeyHex,
		PrivateKey: hex.EncodeToString(priv.Serialize()),
		RelayID:    fmt.Sprintf("relay-%s", pubKeyHex[:16]),
	}
}

// Load resolves the relay identity. A configured secret key wins; otherwise
// the key file in dataDir is loaded or created. Without either the identity
// lives only as long as the process.
func Load(secretKey, dataDir string) (*RelayIdentity, error) {
	if secretKey != "" {
		return FromSecretKey(secretKey)
	}
	if dataDir == "" {
		return GenerateRelayIdentity()
	}
	return GetOrCreateRelayIdentity(filepath.Join(dataDir, RelayIDFileName))
}

// GetOrCreateRelayIdentity loads the identity stored at path or creates
// and saves a new one.
func GetOrCreateRelayIdentity(path string) (*RelayIdentity, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		identity, err := GenerateRelayIdentity()
		if err != nil {
			return nil, fmt.Errorf("failed to generate relay identity: %w", err)
		}
		if err := saveRelayIdentity(identity, path); err != nil {
			return nil, fmt.Errorf("failed to save relay identity: %w", err)
		}
		return identity, nil
	}
	return loadRelayIdentity(path)
}

// saveRelayIdentity stores only the secret key; the public key is derived from it.
func saveRelayIdentity(identity *RelayIdentity, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.PrivateKey+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write relay ID file: %w", err)
	}
	return nil
}

func loadRelayIdentity(path string) (*RelayIdentity, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read relay ID file: %w", err)
	}
	identity, err := FromSecretKey(string(content))
	if err != nil {
		return nil, fmt.Errorf("relay ID file %s: %w", path, err)
	}
	return identity, nil
}

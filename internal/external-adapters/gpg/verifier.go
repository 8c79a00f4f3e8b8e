// Package gpg provides OpenPGP detached signature verification.
package gpg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/ochairo/verifydeps/internal/domain/entities"
)

// DefaultKeyservers are queried in order when importing keys by ID
var DefaultKeyservers = []string{
	"https://keys.openpgp.org",
	"https://keyserver.ubuntu.com",
}

const (
	// maxSignatureSize bounds signature files; detached signatures are typically < 1KB
	maxSignatureSize = 64 * 1024
	// maxKeyringSize bounds KEYS files and keyserver responses
	maxKeyringSize = 10 * 1024 * 1024

	armoredSignaturePrefix = "-----BEGIN PGP SIGNATURE"
	armoredKeyPrefix       = "-----BEGIN PGP P"
)

// Verifier checks detached signatures against an in-memory keyring using
// ProtonMail's go-crypto, a maintained fork of golang.org/x/crypto/openpgp
type Verifier struct {
	mu         sync.RWMutex
	keyring    openpgp.EntityList
	httpClient *http.Client
	keyservers []string
}

// NewVerifier creates a verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{
		keyring: make(openpgp.EntityList, 0),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		keyservers: DefaultKeyservers,
	}
}

// WithKeyservers replaces the keyservers used by ImportKeys
func (v *Verifier) WithKeyservers(keyservers ...string) *Verifier {
	v.keyservers = keyservers
	return v
}

// ImportKeys imports keys by fingerprint or long key ID from the keyservers
func (v *Verifier) ImportKeys(ctx context.Context, keyIDs []string) error {
	if len(keyIDs) == 0 {
		return fmt.Errorf("no key IDs provided")
	}

	for _, keyID := range keyIDs {
		keyID = normalizeKeyID(keyID)
		if keyID == "" {
			continue
		}

		var lastErr error
		imported := false

		for _, keyserver := range v.keyservers {
			urls := []string{
				fmt.Sprintf("%s/vks/v1/by-fingerprint/%s", keyserver, keyID),
				fmt.Sprintf("%s/pks/lookup?op=get&options=mr&search=0x%s", keyserver, keyID),
			}

			for _, url := range urls {
				keys, err := v.fetchKeyring(ctx, url)
				if err != nil {
					lastErr = err
					continue
				}

				// The keyserver must return the key that was asked for
				matching := make(openpgp.EntityList, 0, len(keys))
				for _, entity := range keys {
					if entities.KeyMatches(keyID, Fingerprint(entity)) {
						matching = append(matching, entity)
					}
				}
				if len(matching) == 0 {
					lastErr = fmt.Errorf("no keys found matching fingerprint %s", keyID)
					continue
				}

				v.addEntities(matching)
				imported = true
				break
			}

			if imported {
				break
			}
		}

		if !imported {
			return fmt.Errorf("failed to import key %s from all keyservers: %w", keyID, lastErr)
		}
	}

	return nil
}

// ImportKeysFromURL imports every key of a KEYS file
func (v *Verifier) ImportKeysFromURL(ctx context.Context, keysURL string) error {
	keys, err := v.fetchKeyring(ctx, keysURL)
	if err != nil {
		return fmt.Errorf("failed to import KEYS file: %w", err)
	}
	v.addEntities(keys)
	return nil
}

// ImportKeyFromFile imports keys from an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath is a user-provided keyring
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}

	if err := v.ImportKeyring(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to read key %s: %w", keyPath, err)
	}
	return nil
}

// ImportKeyring imports keys from an armored or binary keyring stream
func (v *Verifier) ImportKeyring(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxKeyringSize))
	if err != nil {
		return fmt.Errorf("failed to read keyring: %w", err)
	}

	keys, err := parseKeyring(data)
	if err != nil {
		return err
	}
	v.addEntities(keys)
	return nil
}

// VerifyDetached verifies a detached signature file and returns the
// fingerprint of the signing key
func (v *Verifier) VerifyDetached(_ context.Context, filePath, sigPath string) (string, error) {
	v.mu.RLock()
	keyring := v.keyring
	v.mu.RUnlock()

	if len(keyring) == 0 {
		return "", fmt.Errorf("no GPG keys imported")
	}

	//nolint:gosec // G304: sigPath comes from the artifact cache
	sigFile, err := os.Open(sigPath)
	if err != nil {
		return "", fmt.Errorf("failed to open signature file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer sigFile.Close()

	//nolint:gosec // G304: filePath comes from the artifact cache
	dataFile, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open data file: %w", err)
	}
	//nolint:errcheck // Defer close
	defer dataFile.Close()

	sig := bufio.NewReader(io.LimitReader(sigFile, maxSignatureSize))
	peek, _ := sig.Peek(len(armoredSignaturePrefix))

	var signer *openpgp.Entity
	if string(peek) == armoredSignaturePrefix {
		signer, err = openpgp.CheckArmoredDetachedSignature(keyring, dataFile, sig, nil)
	} else {
		signer, err = openpgp.CheckDetachedSignature(keyring, dataFile, sig, nil)
	}
	if err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	if signer == nil {
		return "", errors.New("signature verification failed: unknown signer")
	}

	return Fingerprint(signer), nil
}

// KeyringSize returns the number of keys in the keyring
func (v *Verifier) KeyringSize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keyring)
}

// Fingerprint returns the uppercase hex fingerprint of an entity's primary key
func Fingerprint(entity *openpgp.Entity) string {
	return fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint)
}

func (v *Verifier) addEntities(keys openpgp.EntityList) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keyring = append(v.keyring, keys...)
}

func (v *Verifier) fetchKeyring(ctx context.Context, url string) (openpgp.EntityList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyringSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseKeyring(data)
}

// parseKeyring reads every key of a keyring. Armored input may hold several
// concatenated key blocks, as KEYS files and exported keyrings do.
func parseKeyring(data []byte) (openpgp.EntityList, error) {
	blocks := splitArmoredBlocks(data)
	if len(blocks) == 0 {
		keys, err := openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse keyring: %w", err)
		}
		if len(keys) == 0 {
			return nil, fmt.Errorf("no keys found in keyring")
		}
		return keys, nil
	}

	var keys openpgp.EntityList
	for i, block := range blocks {
		blockKeys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(block))
		if err != nil {
			return nil, fmt.Errorf("failed to parse keyring block %d: %w", i+1, err)
		}
		if len(blockKeys) == 0 {
			return nil, fmt.Errorf("no keys found in keyring block %d", i+1)
		}
		keys = append(keys, blockKeys...)
	}
	return keys, nil
}

// splitArmoredBlocks cuts data at each armored key header. Text before the
// first header, such as the comments of a KEYS file, is discarded.
func splitArmoredBlocks(data []byte) [][]byte {
	marker := []byte(armoredKeyPrefix)
	var starts []int
	for offset := 0; ; {
		i := bytes.Index(data[offset:], marker)
		if i < 0 {
			break
		}
		starts = append(starts, offset+i)
		offset += i + len(marker)
	}

	blocks := make([][]byte, 0, len(starts))
	for i, start := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		blocks = append(blocks, data[start:end])
	}
	return blocks
}

// normalizeKeyID strips whitespace and a 0x prefix, returning uppercase hex
func normalizeKeyID(keyID string) string {
	keyID = strings.TrimSpace(keyID)
	if len(keyID) > 2 && (keyID[:2] == "0x" || keyID[:2] == "0X") {
		keyID = keyID[2:]
	}
	return strings.ToUpper(keyID)
}

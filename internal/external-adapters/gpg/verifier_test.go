package gpg

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

func newTestEntity(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity(name, "test", name+"@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	return entity
}

func armoredPublicKey(t *testing.T, entity *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode() error = %v", err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

// writeSignedFile writes content and its detached signature, returning both paths
func writeSignedFile(t *testing.T, signer *openpgp.Entity, content []byte, armored bool) (string, string) {
	t.Helper()
	dir := t.TempDir()
	filePath := filepath.Join(dir, "lib-1.0.jar")
	if err := os.WriteFile(filePath, content, 0600); err != nil {
		t.Fatal(err)
	}

	var sig bytes.Buffer
	var err error
	if armored {
		err = openpgp.ArmoredDetachSign(&sig, signer, bytes.NewReader(content), nil)
	} else {
		err = openpgp.DetachSign(&sig, signer, bytes.NewReader(content), nil)
	}
	if err != nil {
		t.Fatalf("DetachSign() error = %v", err)
	}

	sigPath := filePath + ".asc"
	if err := os.WriteFile(sigPath, sig.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return filePath, sigPath
}

func TestVerifier_VerifyDetached(t *testing.T) {
	signer := newTestEntity(t, "signer")
	content := []byte("artifact content")

	for _, armored := range []bool{true, false} {
		name := "binary"
		if armored {
			name = "armored"
		}
		t.Run(name, func(t *testing.T) {
			v := NewVerifier()
			if err := v.ImportKeyring(bytes.NewReader(armoredPublicKey(t, signer))); err != nil {
				t.Fatalf("ImportKeyring() error = %v", err)
			}

			filePath, sigPath := writeSignedFile(t, signer, content, armored)
			fingerprint, err := v.VerifyDetached(context.Background(), filePath, sigPath)
			if err != nil {
				t.Fatalf("VerifyDetached() error = %v", err)
			}
			if fingerprint != Fingerprint(signer) {
				t.Errorf("VerifyDetached() fingerprint = %s, want %s", fingerprint, Fingerprint(signer))
			}
		})
	}
}

func TestVerifier_VerifyDetached_TamperedFile(t *testing.T) {
	signer := newTestEntity(t, "signer")
	v := NewVerifier()
	if err := v.ImportKeyring(bytes.NewReader(armoredPublicKey(t, signer))); err != nil {
		t.Fatalf("ImportKeyring() error = %v", err)
	}

	filePath, sigPath := writeSignedFile(t, signer, []byte("original"), true)
	if err := os.WriteFile(filePath, []byte("tampered"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := v.VerifyDetached(context.Background(), filePath, sigPath)
	if err == nil {
		t.Fatal("VerifyDetached() on tampered file should return error")
	}
	if !strings.Contains(err.Error(), "signature verification failed") {
		t.Errorf("Expected 'signature verification failed' error, got: %v", err)
	}
}

func TestVerifier_VerifyDetached_UnknownSigner(t *testing.T) {
	known := newTestEntity(t, "known")
	stranger := newTestEntity(t, "stranger")

	v := NewVerifier()
	if err := v.ImportKeyring(bytes.NewReader(armoredPublicKey(t, known))); err != nil {
		t.Fatalf("ImportKeyring() error = %v", err)
	}

	filePath, sigPath := writeSignedFile(t, stranger, []byte("content"), true)
	if _, err := v.VerifyDetached(context.Background(), filePath, sigPath); err == nil {
		t.Fatal("VerifyDetached() with unknown signer should return error")
	}
}

func TestVerifier_VerifyDetached_NoKeysImported(t *testing.T) {
	v := NewVerifier()

	_, err := v.VerifyDetached(context.Background(), "/tmp/lib.jar", "/tmp/lib.jar.asc")
	if err == nil {
		t.Fatal("Expected error when no keys are imported, got nil")
	}
	if !strings.Contains(err.Error(), "no GPG keys imported") {
		t.Errorf("Expected 'no GPG keys imported' error, got: %v", err)
	}
}

func TestVerifier_VerifyDetached_NonexistentFiles(t *testing.T) {
	signer := newTestEntity(t, "signer")
	v := NewVerifier()
	if err := v.ImportKeyring(bytes.NewReader(armoredPublicKey(t, signer))); err != nil {
		t.Fatalf("ImportKeyring() error = %v", err)
	}

	filePath, sigPath := writeSignedFile(t, signer, []byte("content"), true)

	if _, err := v.VerifyDetached(context.Background(), filePath, "/nonexistent/lib.jar.asc"); err == nil {
		t.Error("Expected error for nonexistent signature file, got nil")
	}
	if _, err := v.VerifyDetached(context.Background(), "/nonexistent/lib.jar", sigPath); err == nil {
		t.Error("Expected error for nonexistent data file, got nil")
	}
}

func TestVerifier_ImportKeyFromFile(t *testing.T) {
	signer := newTestEntity(t, "signer")
	tmpDir := t.TempDir()

	t.Run("armored", func(t *testing.T) {
		keyPath := filepath.Join(tmpDir, "key.asc")
		if err := os.WriteFile(keyPath, armoredPublicKey(t, signer), 0600); err != nil {
			t.Fatal(err)
		}
		v := NewVerifier()
		if err := v.ImportKeyFromFile(keyPath); err != nil {
			t.Fatalf("ImportKeyFromFile() error = %v", err)
		}
		if v.KeyringSize() != 1 {
			t.Errorf("KeyringSize() = %d, want 1", v.KeyringSize())
		}
	})

	t.Run("binary", func(t *testing.T) {
		var buf bytes.Buffer
		if err := signer.Serialize(&buf); err != nil {
			t.Fatal(err)
		}
		keyPath := filepath.Join(tmpDir, "key.gpg")
		if err := os.WriteFile(keyPath, buf.Bytes(), 0600); err != nil {
			t.Fatal(err)
		}
		v := NewVerifier()
		if err := v.ImportKeyFromFile(keyPath); err != nil {
			t.Fatalf("ImportKeyFromFile() error = %v", err)
		}
		if v.KeyringSize() != 1 {
			t.Errorf("KeyringSize() = %d, want 1", v.KeyringSize())
		}
	})

	t.Run("nonexistent", func(t *testing.T) {
		err := NewVerifier().ImportKeyFromFile("/nonexistent/key.asc")
		if err == nil || !strings.Contains(err.Error(), "failed to open key file") {
			t.Errorf("Expected 'failed to open key file' error, got: %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		keyPath := filepath.Join(tmpDir, "garbage.asc")
		if err := os.WriteFile(keyPath, []byte("not a gpg key"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := NewVerifier().ImportKeyFromFile(keyPath); err == nil {
			t.Error("Expected error for invalid key file, got nil")
		}
	})
}

func TestVerifier_ImportKeys_FromKeyserver(t *testing.T) {
	signer := newTestEntity(t, "signer")
	other := newTestEntity(t, "other")
	fingerprint := Fingerprint(signer)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/by-fingerprint/"+fingerprint):
			_, _ = w.Write(armoredPublicKey(t, signer))
		case strings.HasSuffix(r.URL.Path, "/by-fingerprint/"+Fingerprint(other)):
			// A misbehaving keyserver answering with the wrong key
			_, _ = w.Write(armoredPublicKey(t, signer))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	t.Run("matching key", func(t *testing.T) {
		v := NewVerifier().WithKeyservers(server.URL)
		if err := v.ImportKeys(context.Background(), []string{strings.ToLower(fingerprint)}); err != nil {
			t.Fatalf("ImportKeys() error = %v", err)
		}
		if v.KeyringSize() != 1 {
			t.Errorf("KeyringSize() = %d, want 1", v.KeyringSize())
		}
	})

	t.Run("mismatched key rejected", func(t *testing.T) {
		v := NewVerifier().WithKeyservers(server.URL)
		err := v.ImportKeys(context.Background(), []string{Fingerprint(other)})
		if err == nil || !strings.Contains(err.Error(), "failed to import key") {
			t.Errorf("Expected 'failed to import key' error, got: %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		v := NewVerifier().WithKeyservers(server.URL)
		if err := v.ImportKeys(context.Background(), []string{"DEADBEEFDEADBEEF"}); err == nil {
			t.Error("Expected error for unknown key, got nil")
		}
	})
}

func TestVerifier_ImportKeys_EmptyKeyIDs(t *testing.T) {
	err := NewVerifier().ImportKeys(context.Background(), []string{})
	if err == nil || !strings.Contains(err.Error(), "no key IDs provided") {
		t.Errorf("Expected 'no key IDs provided' error, got: %v", err)
	}
}

func TestVerifier_ImportKeys_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewVerifier().ImportKeys(ctx, []string{"DEADBEEFDEADBEEF"}); err == nil {
		t.Fatal("Expected error for canceled context, got nil")
	}
}

func TestVerifier_ImportKeysFromURL(t *testing.T) {
	first := newTestEntity(t, "first")
	second := newTestEntity(t, "second")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(armoredPublicKey(t, first))
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write(armoredPublicKey(t, second))
	}))
	defer server.Close()

	v := NewVerifier()
	if err := v.ImportKeysFromURL(context.Background(), server.URL+"/KEYS"); err != nil {
		t.Fatalf("ImportKeysFromURL() error = %v", err)
	}
	if v.KeyringSize() != 2 {
		t.Errorf("KeyringSize() = %d, want 2", v.KeyringSize())
	}
}

func TestVerifier_ImportKeyFromFile_MultipleBlocks(t *testing.T) {
	first := newTestEntity(t, "first")
	second := newTestEntity(t, "second")
	third := newTestEntity(t, "third")

	// KEYS files interleave comments with one armored block per key
	var keys bytes.Buffer
	for _, entity := range []*openpgp.Entity{first, second, third} {
		keys.WriteString("pub   ed25519 " + Fingerprint(entity) + "\n")
		keys.Write(armoredPublicKey(t, entity))
		keys.WriteString("\n\n")
	}

	keyPath := filepath.Join(t.TempDir(), "KEYS")
	if err := os.WriteFile(keyPath, keys.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	v := NewVerifier()
	if err := v.ImportKeyFromFile(keyPath); err != nil {
		t.Fatalf("ImportKeyFromFile() error = %v", err)
	}
	if v.KeyringSize() != 3 {
		t.Fatalf("KeyringSize() = %d, want 3", v.KeyringSize())
	}

	// A key after the first block must be able to verify signatures
	filePath, sigPath := writeSignedFile(t, third, []byte("content"), true)
	fingerprint, err := v.VerifyDetached(context.Background(), filePath, sigPath)
	if err != nil {
		t.Fatalf("VerifyDetached() with third key error = %v", err)
	}
	if fingerprint != Fingerprint(third) {
		t.Errorf("VerifyDetached() fingerprint = %s, want %s", fingerprint, Fingerprint(third))
	}
}

func TestVerifier_ImportKeys_HexPrefix(t *testing.T) {
	signer := newTestEntity(t, "signer")
	fingerprint := Fingerprint(signer)

	var (
		mu    sync.Mutex
		paths []string
	)
	requested := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.RequestURI())
		mu.Unlock()
		if r.URL.Path == "/vks/v1/by-fingerprint/"+fingerprint {
			_, _ = w.Write(armoredPublicKey(t, signer))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	for _, keyID := range []string{"0x" + strings.ToLower(fingerprint), "0X" + fingerprint, " " + fingerprint + " "} {
		t.Run(keyID, func(t *testing.T) {
			mu.Lock()
			paths = nil
			mu.Unlock()

			v := NewVerifier().WithKeyservers(server.URL)
			if err := v.ImportKeys(context.Background(), []string{keyID}); err != nil {
				t.Fatalf("ImportKeys() error = %v (requests: %v)", err, requested())
			}
			if got := requested(); len(got) != 1 || got[0] != "/vks/v1/by-fingerprint/"+fingerprint {
				t.Errorf("ImportKeys() requested %v, want only the normalized fingerprint", got)
			}
		})
	}
}

func TestParseKeyring(t *testing.T) {
	signer := newTestEntity(t, "signer")

	t.Run("comments only", func(t *testing.T) {
		if _, err := parseKeyring([]byte("This file contains the KEYS\n")); err == nil {
			t.Error("Expected error for keyring without keys, got nil")
		}
	})

	t.Run("corrupt second block", func(t *testing.T) {
		data := append(armoredPublicKey(t, signer), []byte("\n-----BEGIN PGP PUBLIC KEY BLOCK-----\n\ngarbage\n")...)
		if _, err := parseKeyring(data); err == nil || !strings.Contains(err.Error(), "block 2") {
			t.Errorf("Expected error naming block 2, got: %v", err)
		}
	})
}

func TestNormalizeKeyID(t *testing.T) {
	tests := map[string]string{
		"0xabcdef0123456789":   "ABCDEF0123456789",
		"0XABCDEF0123456789":   "ABCDEF0123456789",
		" abcdef0123456789\t": "ABCDEF0123456789",
		"0x":                   "0X",
		"":                     "",
	}
	for in, want := range tests {
		if got := normalizeKeyID(in); got != want {
			t.Errorf("normalizeKeyID(%q) = %q, want %q", in, got, want)
		}
	}
}

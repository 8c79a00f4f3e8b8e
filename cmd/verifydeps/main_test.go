package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/spf13/pflag"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/external-adapters/yaml"
)

const (
	testPOM = "<project><modelVersion>4.0.0</modelVersion></project>"
	testJar = "main jar"
)

var libComponent = entities.ModuleComponentIdentifier{Group: "com.example", Module: "lib", Version: "1.0"}

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func newRepositoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/com/example/lib/1.0/lib-1.0.pom": testPOM,
		"/com/example/lib/1.0/lib-1.0.jar": testJar,
		"/com/example/lib/maven-metadata.xml": `<metadata><versioning><versions>
			<version>2.0</version><version>1.0</version>
		</versions></versioning></metadata>`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func writeMetadata(t *testing.T, path string, md *entities.VerificationMetadata) {
	t.Helper()
	if err := yaml.NewMetadataStore(path).Save(md); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func newResolveOptions(serverURL, dir string) *resolveOptions {
	return &resolveOptions{
		repository: repositoryFlags{
			RepositoryURL:  serverURL,
			RepositoryName: "test",
			CacheDir:       filepath.Join(dir, "cache"),
		},
		verification: verificationFlags{
			MetadataFile: filepath.Join(dir, yaml.DefaultMetadataFile),
		},
	}
}

func TestExecuteResolve_RecordThenVerify(t *testing.T) {
	server := newRepositoryServer(t)
	dir := t.TempDir()

	opts := newResolveOptions(server.URL, dir)
	opts.writeMetadata = true

	var out bytes.Buffer
	if err := executeResolve(context.Background(), libComponent, opts, &interfaces.NoOpLogger{}, &out); err != nil {
		t.Fatalf("executeResolve(record) error = %v", err)
	}
	if !strings.Contains(out.String(), "Wrote checksums") {
		t.Errorf("Expected record confirmation, got:\n%s", out.String())
	}

	md, err := yaml.NewMetadataStore(opts.verification.MetadataFile).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	jar, ok := md.FindArtifact(libComponent, "lib-1.0.jar")
	if !ok {
		t.Fatal("Recorded metadata has no entry for lib-1.0.jar")
	}
	if got := jar.Checksums[0].Value; got != sha256Hex(testJar) {
		t.Errorf("Recorded sha256 = %s, want %s", got, sha256Hex(testJar))
	}

	// A fresh cache verifies against what was recorded
	opts = newResolveOptions(server.URL, dir)
	opts.repository.CacheDir = filepath.Join(dir, "fresh-cache")
	out.Reset()
	if err := executeResolve(context.Background(), libComponent, opts, &interfaces.NoOpLogger{}, &out); err != nil {
		t.Fatalf("executeResolve(verify) error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "RESOLVED") {
		t.Errorf("Expected resolved summary, got:\n%s", out.String())
	}
}

func TestExecuteResolve_ChecksumMismatch(t *testing.T) {
	server := newRepositoryServer(t)
	dir := t.TempDir()
	opts := newResolveOptions(server.URL, dir)

	md := &entities.VerificationMetadata{VerifyMetadata: true, Mode: entities.ModeStrict}
	md.AddChecksum(libComponent, "lib-1.0.pom", entities.Checksum{Kind: entities.ChecksumSHA256, Value: sha256Hex(testPOM)})
	md.AddChecksum(libComponent, "lib-1.0.jar", entities.Checksum{Kind: entities.ChecksumSHA256, Value: sha256Hex("something else")})
	writeMetadata(t, opts.verification.MetadataFile, md)

	var out bytes.Buffer
	if err := executeResolve(context.Background(), libComponent, opts, &interfaces.NoOpLogger{}, &out); err == nil {
		t.Fatalf("Expected verification error, got nil\n%s", out.String())
	}

	t.Run("lenient override", func(t *testing.T) {
		opts := newResolveOptions(server.URL, t.TempDir())
		opts.verification.MetadataFile = filepath.Join(dir, yaml.DefaultMetadataFile)
		opts.verification.Mode = "lenient"

		var out bytes.Buffer
		if err := executeResolve(context.Background(), libComponent, opts, &interfaces.NoOpLogger{}, &out); err != nil {
			t.Fatalf("executeResolve() in lenient mode error = %v", err)
		}
		if !strings.Contains(out.String(), "lenient mode") {
			t.Errorf("Expected lenient warning, got:\n%s", out.String())
		}
	})
}

func TestExecuteResolve_MissingMetadataFile(t *testing.T) {
	server := newRepositoryServer(t)
	opts := newResolveOptions(server.URL, t.TempDir())

	err := executeResolve(context.Background(), libComponent, opts, &interfaces.NoOpLogger{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "failed to load verification metadata") {
		t.Errorf("Expected metadata load error, got: %v", err)
	}
}

func TestExecuteVersions(t *testing.T) {
	server := newRepositoryServer(t)
	flags := &repositoryFlags{RepositoryURL: server.URL, RepositoryName: "test", CacheDir: t.TempDir()}

	var out bytes.Buffer
	if err := executeVersions(context.Background(), "com.example", "lib", flags, &interfaces.NoOpLogger{}, &out); err != nil {
		t.Fatalf("executeVersions() error = %v", err)
	}
	if got, want := out.String(), "1.0\n2.0\n"; got != want {
		t.Errorf("executeVersions() output = %q, want %q", got, want)
	}

	if err := executeVersions(context.Background(), "com.example", "absent", flags, &interfaces.NoOpLogger{}, &out); err == nil {
		t.Error("Expected error for module without versions, got nil")
	}
}

func TestExecuteVerify(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "lib-1.0.jar")
	if err := os.WriteFile(jarPath, []byte(testJar), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		checksum   string
		mode       string
		wantErr    bool
		wantOutput string
	}{
		{name: "matching checksum", checksum: sha256Hex(testJar), wantOutput: "✅ Verified"},
		{name: "mismatch strict", checksum: sha256Hex("other"), wantErr: true, wantOutput: "FAILED"},
		{name: "mismatch lenient", checksum: sha256Hex("other"), mode: "lenient", wantOutput: "lenient mode"},
		{name: "mismatch off", checksum: sha256Hex("other"), mode: "off", wantOutput: "✅ Verified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadataPath := filepath.Join(t.TempDir(), yaml.DefaultMetadataFile)
			md := &entities.VerificationMetadata{VerifyMetadata: true, Mode: entities.ModeStrict}
			md.AddChecksum(libComponent, "lib-1.0.jar", entities.Checksum{Kind: entities.ChecksumSHA256, Value: tt.checksum})
			writeMetadata(t, metadataPath, md)

			opts := &verifyOptions{
				verification: verificationFlags{MetadataFile: metadataPath, Mode: tt.mode},
				component:    libComponent.String(),
			}

			var out bytes.Buffer
			err := executeVerify(context.Background(), jarPath, opts, &interfaces.NoOpLogger{}, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("executeVerify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("executeVerify() output = %q, want it to contain %q", out.String(), tt.wantOutput)
			}
		})
	}
}

func TestExecuteVerify_InvalidInput(t *testing.T) {
	opts := &verifyOptions{component: "not-coordinates"}
	if err := executeVerify(context.Background(), "/nonexistent.jar", opts, nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid coordinates, got nil")
	}

	opts.component = libComponent.String()
	if err := executeVerify(context.Background(), "/nonexistent.jar", opts, nil, &bytes.Buffer{}); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestParseFlags(t *testing.T) {
	var flags repositoryFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	flags.AddFlags(fs)

	ok, err := parseFlags(fs, []string{"--help"})
	if ok || err != nil {
		t.Errorf("parseFlags(--help) = (%v, %v), want (false, nil)", ok, err)
	}

	fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	flags.AddFlags(fs)
	ok, err = parseFlags(fs, []string{"--repo", "https://repo.example.com", "-v", "g:m:1"})
	if !ok || err != nil {
		t.Fatalf("parseFlags() = (%v, %v), want (true, nil)", ok, err)
	}
	if flags.RepositoryURL != "https://repo.example.com" || !flags.Verbose || fs.Arg(0) != "g:m:1" {
		t.Errorf("Unexpected parsed flags: %+v args=%v", flags, fs.Args())
	}

	if ok, err := parseFlags(fs, []string{"--unknown"}); ok || err == nil {
		t.Errorf("parseFlags(--unknown) = (%v, %v), want error", ok, err)
	}
}

func TestRepositoryFlags_RepositoryIDFromURL(t *testing.T) {
	flags := &repositoryFlags{
		RepositoryURL:  "https://nexus.example.com/repository/maven-public/",
		RepositoryName: "../../team/mirror",
		CacheDir:       t.TempDir(),
	}

	repo, err := flags.repository(&interfaces.NoOpLogger{})
	if err != nil {
		t.Fatalf("repository() error = %v", err)
	}
	if got, want := repo.ID(), "nexus.example.com-repository-maven-public"; got != want {
		t.Errorf("ID() = %q, want %q", got, want)
	}
	if repo.Name() != flags.RepositoryName {
		t.Errorf("Name() = %q, want %q", repo.Name(), flags.RepositoryName)
	}

	flags.RepositoryURL = "not a url"
	if _, err := flags.repository(&interfaces.NoOpLogger{}); err == nil {
		t.Error("Expected error for repository URL without host, got nil")
	}
}

func TestVerificationFlags_Keyservers(t *testing.T) {
	var flags verificationFlags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	flags.AddFlags(fs)

	ok, err := parseFlags(fs, []string{"--keyserver", "https://keys.example.org", "--keyserver", "https://pgp.example.net", "--fetch-keys"})
	if !ok || err != nil {
		t.Fatalf("parseFlags() = (%v, %v), want (true, nil)", ok, err)
	}
	want := []string{"https://keys.example.org", "https://pgp.example.net"}
	if len(flags.Keyservers) != 2 || flags.Keyservers[0] != want[0] || flags.Keyservers[1] != want[1] {
		t.Errorf("Keyservers = %v, want %v", flags.Keyservers, want)
	}
	if !flags.FetchKeys {
		t.Error("FetchKeys should be set")
	}
}

func newSigningEntity(t *testing.T, name string) (*openpgp.Entity, []byte) {
	t.Helper()
	entity, err := openpgp.NewEntity(name, "test", name+"@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return entity, buf.Bytes()
}

func TestExecuteVerify_SignatureWithKeysURL(t *testing.T) {
	other, otherKey := newSigningEntity(t, "other")
	releaser, releaserKey := newSigningEntity(t, "releaser")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(otherKey)
		_, _ = w.Write([]byte("\n"))
		_, _ = w.Write(releaserKey)
	}))
	defer server.Close()

	dir := t.TempDir()
	jarPath := filepath.Join(dir, "lib-1.0.jar")
	if err := os.WriteFile(jarPath, []byte(testJar), 0600); err != nil {
		t.Fatal(err)
	}
	var sig bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&sig, releaser, strings.NewReader(testJar), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jarPath+".asc", sig.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}

	releaserFingerprint := fmt.Sprintf("%X", releaser.PrimaryKey.Fingerprint)
	tests := []struct {
		name    string
		trusted string
		wantErr bool
	}{
		{name: "trusted signer", trusted: releaserFingerprint},
		{name: "untrusted signer", trusted: fmt.Sprintf("%X", other.PrimaryKey.Fingerprint), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadataPath := filepath.Join(t.TempDir(), yaml.DefaultMetadataFile)
			writeMetadata(t, metadataPath, &entities.VerificationMetadata{
				VerifySignatures: true,
				Mode:             entities.ModeStrict,
				KeyringURLs:      []string{server.URL + "/KEYS"},
				TrustedKeys:      []entities.TrustedKey{{ID: tt.trusted}},
			})

			opts := &verifyOptions{
				verification: verificationFlags{MetadataFile: metadataPath},
				component:    libComponent.String(),
			}
			var out bytes.Buffer
			err := executeVerify(context.Background(), jarPath, opts, &interfaces.NoOpLogger{}, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("executeVerify() error = %v, wantErr %v\n%s", err, tt.wantErr, out.String())
			}
		})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	adapters "github.com/ochairo/verifydeps/internal/domain-adapters/gateways"
	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/gateways"
	"github.com/ochairo/verifydeps/internal/external-adapters/gpg"
	"github.com/ochairo/verifydeps/internal/external-adapters/yaml"
	"github.com/ochairo/verifydeps/internal/external-adapters/zaplog"
)

const defaultRepositoryURL = "https://repo.maven.apache.org/maven2"

// repositoryFlags configures the repository and cache shared by subcommands
type repositoryFlags struct {
	RepositoryURL  string
	RepositoryName string
	CacheDir       string
	Verbose        bool
}

// AddFlags registers the repository flags on flagSet
func (f *repositoryFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.RepositoryURL, "repo", defaultRepositoryURL, "base URL of the Maven repository")
	flagSet.StringVar(&f.RepositoryName, "repo-name", "maven-central", "display name of the repository")
	flagSet.StringVar(&f.CacheDir, "cache-dir", "", "artifact cache directory (default: user cache dir)")
	flagSet.BoolVarP(&f.Verbose, "verbose", "v", false, "enable debug logging")
}

func (f *repositoryFlags) cacheDir() (string, error) {
	if f.CacheDir != "" {
		return f.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine cache directory, use --cache-dir: %w", err)
	}
	return filepath.Join(base, "verifydeps"), nil
}

func (f *repositoryFlags) repository(logger interfaces.Logger) (*adapters.CachedModuleRepository, error) {
	cacheDir, err := f.cacheDir()
	if err != nil {
		return nil, err
	}
	id, err := adapters.RepositoryIDForURL(f.RepositoryURL)
	if err != nil {
		return nil, err
	}
	return adapters.NewCachedModuleRepository(id, f.RepositoryName, f.RepositoryURL, cacheDir, logger), nil
}

// verificationFlags configures the verification metadata
type verificationFlags struct {
	MetadataFile string
	Mode         string
	FetchKeys    bool
	Keyservers   []string
}

// AddFlags registers the verification flags on flagSet
func (f *verificationFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.MetadataFile, "metadata", yaml.DefaultMetadataFile, "verification metadata file")
	flagSet.StringVar(&f.Mode, "mode", "", "override the verification mode (strict, lenient, off)")
	flagSet.BoolVar(&f.FetchKeys, "fetch-keys", false, "download trusted keys from keyservers")
	flagSet.StringSliceVar(&f.Keyservers, "keyserver", nil, "keyserver used by --fetch-keys (repeatable, default: keys.openpgp.org, keyserver.ubuntu.com)")
}

// load reads the metadata file, applying the --mode override
func (f *verificationFlags) load(store *yaml.MetadataStore) (*entities.VerificationMetadata, error) {
	md, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load verification metadata: %w", err)
	}
	if f.Mode != "" {
		mode, err := entities.ParseVerificationMode(f.Mode)
		if err != nil {
			return nil, err
		}
		md.Mode = mode
	}
	return md, nil
}

// verificationGateway builds the checksum and signature gateway, loading
// keyrings only when signatures are verified
func (f *verificationFlags) verificationGateway(ctx context.Context, md *entities.VerificationMetadata) (gateways.VerificationGateway, error) {
	verifier := gpg.NewVerifier()
	if len(f.Keyservers) > 0 {
		verifier.WithKeyservers(f.Keyservers...)
	}
	gateway := adapters.NewCompositeVerificationGatewayWithDeps(adapters.NewChecksumVerifier(), adapters.NewGPGVerifierWith(verifier))
	if md.VerifySignatures {
		if err := gateway.LoadKeys(ctx, md, f.FetchKeys); err != nil {
			return nil, err
		}
	}
	return gateway, nil
}

func newLogger(verbose bool) (*zaplog.Logger, error) {
	return zaplog.New(verbose)
}

// parseFlags parses args, printing usage on --help
func parseFlags(flagSet *pflag.FlagSet, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

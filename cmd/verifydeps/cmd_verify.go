package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/services"
	"github.com/ochairo/verifydeps/internal/external-adapters/yaml"
)

type verifyOptions struct {
	verification verificationFlags
	component    string
	signature    string
	verbose      bool
}

func runVerify(ctx context.Context, args []string) error {
	var opts verifyOptions
	fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	opts.verification.AddFlags(fs)
	fs.StringVar(&opts.component, "component", "", "coordinates (group:module:version) the file belongs to")
	fs.StringVar(&opts.signature, "signature", "", "detached signature file (default: <file>.asc when present)")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: verifydeps verify <file> --component <group:module:version> [options]

Verify a single artifact file against the verification metadata, using its
detached signature when signature verification is enabled.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  verifydeps verify guava-33.0.0-jre.jar --component com.google.guava:guava:33.0.0-jre
`)
	}

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if fs.NArg() != 1 || opts.component == "" {
		fs.Usage()
		return fmt.Errorf("file path and --component are required")
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return err
	}
	//nolint:errcheck // Best effort flush on exit
	defer logger.Sync()

	return executeVerify(ctx, fs.Arg(0), &opts, logger, os.Stdout)
}

func executeVerify(ctx context.Context, filePath string, opts *verifyOptions, logger interfaces.Logger, out io.Writer) error {
	component, err := entities.ParseModuleComponentIdentifier(opts.component)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("cannot read %s: %w", filePath, err)
	}

	md, err := opts.verification.load(yaml.NewMetadataStore(opts.verification.MetadataFile))
	if err != nil {
		return err
	}
	gateway, err := opts.verification.verificationGateway(ctx, md)
	if err != nil {
		return err
	}
	verifier := services.NewDependencyVerifier(md, gateway, logger)

	id := entities.ModuleFileArtifactID{Component: component, File: filepath.Base(filePath)}
	kind := entities.ArtifactKindRegular
	if strings.HasSuffix(filePath, ".pom") {
		kind = entities.ArtifactKindMetadata
	}
	signatureFile := func(context.Context) (string, bool) {
		if opts.signature != "" {
			return opts.signature, true
		}
		if _, err := os.Stat(filePath + ".asc"); err == nil {
			return filePath + ".asc", true
		}
		return "", false
	}

	fmt.Fprintf(out, "🔍 Verifying %s\n", id.DisplayName())
	if err := verifier.OnArtifact(ctx, kind, id, filePath, signatureFile, "local", "local"); err != nil {
		fmt.Fprintf(out, "❌ Verification FAILED\n")
		return err
	}
	if failures := verifier.Failures(); failures != nil {
		fmt.Fprintf(out, "⚠️  Verification problems (lenient mode):\n%v\n", failures)
		return nil
	}
	fmt.Fprintf(out, "✅ Verified\n")
	return nil
}

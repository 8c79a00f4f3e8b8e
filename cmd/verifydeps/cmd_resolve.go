package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	orchestrators "github.com/ochairo/verifydeps/internal/domain-orchestrators"
	adapters "github.com/ochairo/verifydeps/internal/domain-adapters/gateways"
	"github.com/ochairo/verifydeps/internal/domain/entities"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
	"github.com/ochairo/verifydeps/internal/domain/interfaces/gateways"
	"github.com/ochairo/verifydeps/internal/domain/services"
	"github.com/ochairo/verifydeps/internal/external-adapters/yaml"
)

type resolveOptions struct {
	repository   repositoryFlags
	verification verificationFlags

	sources       bool
	javadoc       bool
	changing      bool
	writeMetadata bool
}

func runResolve(ctx context.Context, args []string) error {
	var opts resolveOptions
	fs := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
	opts.repository.AddFlags(fs)
	opts.verification.AddFlags(fs)
	fs.BoolVar(&opts.sources, "sources", false, "also resolve the sources artifact")
	fs.BoolVar(&opts.javadoc, "javadoc", false, "also resolve the javadoc artifact")
	fs.BoolVar(&opts.changing, "changing", false, "treat the module as changing (skips verification)")
	fs.BoolVar(&opts.writeMetadata, "write-verification-metadata", false, "record sha256 checksums into the metadata file instead of verifying")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: verifydeps resolve <group:module:version> [options]

Resolve a module version from the repository cache, downloading what is
missing, and verify every artifact against the verification metadata.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Resolve and verify against ./verification-metadata.yml
  verifydeps resolve com.google.guava:guava:33.0.0-jre

  # Bootstrap the metadata file with the checksums of what was downloaded
  verifydeps resolve org.slf4j:slf4j-api:2.0.9 --write-verification-metadata
`)
	}

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("module coordinates are required")
	}

	id, err := entities.ParseModuleComponentIdentifier(fs.Arg(0))
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.repository.Verbose)
	if err != nil {
		return err
	}
	//nolint:errcheck // Best effort flush on exit
	defer logger.Sync()

	return executeResolve(ctx, id, &opts, logger, os.Stdout)
}

func executeResolve(ctx context.Context, id entities.ModuleComponentIdentifier, opts *resolveOptions, logger interfaces.Logger, out io.Writer) error {
	repo, err := opts.repository.repository(logger)
	if err != nil {
		return err
	}
	store := yaml.NewMetadataStore(opts.verification.MetadataFile)

	var (
		operation        gateways.ArtifactVerificationOperation
		verifier         *services.DependencyVerifier
		recorder         *services.ChecksumRecorder
		verifySignatures bool
	)

	if opts.writeMetadata {
		md, err := store.LoadOrDefault()
		if err != nil {
			return fmt.Errorf("failed to load verification metadata: %w", err)
		}
		recorder = services.NewChecksumRecorder(md, adapters.NewChecksumVerifier(), logger)
		operation = recorder
	} else {
		md, err := opts.verification.load(store)
		if err != nil {
			return err
		}
		gateway, err := opts.verification.verificationGateway(ctx, md)
		if err != nil {
			return err
		}
		verifier = services.NewDependencyVerifier(md, gateway, logger)
		operation = verifier
		verifySignatures = md.VerifySignatures
	}

	verifying := services.NewDependencyVerifyingRepository(repo, operation, verifySignatures, logger)
	orchestrator := orchestrators.NewResolutionOrchestrator(verifying, logger)

	result, err := orchestrator.ResolveComponent(ctx, id,
		entities.ComponentOverrideMetadata{Changing: opts.changing},
		orchestrators.ResolveOptions{Sources: opts.sources, Javadoc: opts.javadoc})
	if err != nil {
		return err
	}

	fmt.Fprint(out, orchestrator.GetResolutionSummary(result))

	if recorder != nil {
		if err := store.Save(recorder.Metadata()); err != nil {
			return err
		}
		fmt.Fprintf(out, "📝 Wrote checksums to %s\n", store.Path())
	}
	if verifier != nil {
		if failures := verifier.Failures(); failures != nil && result.Err() == nil {
			fmt.Fprintf(out, "⚠️  Verification problems (lenient mode):\n%v\n", failures)
		}
	}

	return result.Err()
}

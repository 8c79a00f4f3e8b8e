package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	orchestrators "github.com/ochairo/verifydeps/internal/domain-orchestrators"
	"github.com/ochairo/verifydeps/internal/domain/interfaces"
)

func runVersions(ctx context.Context, args []string) error {
	var repoFlags repositoryFlags
	fs := pflag.NewFlagSet("versions", pflag.ContinueOnError)
	repoFlags.AddFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: verifydeps versions <group:module> [options]

List the versions of a module, oldest first. Cached versions are listed
when present; otherwise the repository's maven-metadata.xml is queried.

Options:
`)
		fs.PrintDefaults()
	}

	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("module coordinates are required")
	}

	group, module, ok := strings.Cut(fs.Arg(0), ":")
	if !ok || group == "" || module == "" || strings.Contains(module, ":") {
		return fmt.Errorf("invalid module %q: expected group:module", fs.Arg(0))
	}

	logger, err := newLogger(repoFlags.Verbose)
	if err != nil {
		return err
	}
	//nolint:errcheck // Best effort flush on exit
	defer logger.Sync()

	return executeVersions(ctx, group, module, &repoFlags, logger, os.Stdout)
}

func executeVersions(ctx context.Context, group, module string, repoFlags *repositoryFlags, logger interfaces.Logger, out io.Writer) error {
	repo, err := repoFlags.repository(logger)
	if err != nil {
		return err
	}

	versions, err := orchestrators.NewResolutionOrchestrator(repo, logger).ListVersions(ctx, group, module)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no versions found for %s:%s", group, module)
	}

	for _, v := range versions {
		fmt.Fprintln(out, v)
	}
	return nil
}

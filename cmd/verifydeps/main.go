package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]

	// Dispatch to subcommand
	var err error
	switch command {
	case "resolve":
		err = runResolve(ctx, os.Args[2:])
	case "versions":
		err = runVersions(ctx, os.Args[2:])
	case "verify":
		err = runVerify(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`verifydeps - Resolve and verify dependencies from Maven repositories

Usage:
  verifydeps <command> [options]

Commands:
  resolve   Resolve a module version and verify its artifacts
  versions  List the available versions of a module
  verify    Verify a single file against verification metadata

Use "verifydeps <command> --help" for more information about a command.`)
}

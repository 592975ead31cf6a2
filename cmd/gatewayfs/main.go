package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gatewayfs/gatewayfs/internal/adapter"
	"github.com/gatewayfs/gatewayfs/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

const usage = `gatewayfs - mount an S3 bucket as a POSIX filesystem

Usage:
  gatewayfs mount <s3://bucket[/prefix]> <mountpoint> [flags]
  gatewayfs version

Flags:
  --config string   Path to YAML config file (defaults come from config.NewDefault)

Environment:
  A fixed set of options can be overridden with environment variables,
  e.g. GATEWAYFS_S3_REGION=eu-west-1 or GATEWAYFS_LOG_LEVEL=DEBUG; read-ahead
  settings use OBJECTFS_READAHEAD_*. Options outside that set come only
  from the config file or the defaults.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "mount":
		runMount(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("gatewayfs %s (commit: %s)\n", version, commit)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func runMount(args []string) {
	flags := flag.NewFlagSet("mount", flag.ExitOnError)
	configFile := flags.String("config", "", "path to YAML config file")
	if err := flags.Parse(args); err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	rest := flags.Args()
	if len(rest) != 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	storageURI, mountPoint := rest[0], rest[1]

	cfg := config.NewDefault()
	if *configFile != "" {
		if err := cfg.LoadFromFile(*configFile); err != nil {
			log.Fatalf("failed to load config file: %v", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("failed to apply environment overrides: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := adapter.New(ctx, storageURI, mountPoint, cfg)
	if err != nil {
		log.Fatalf("failed to create adapter: %v", err)
	}

	if err := a.Start(ctx); err != nil {
		log.Fatalf("failed to start adapter: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("mounted %s at %s, press Ctrl+C to stop", storageURI, mountPoint)
	<-sigCh
	signal.Stop(sigCh)

	log.Printf("shutdown signal received, stopping")
	if err := a.Stop(ctx); err != nil {
		log.Fatalf("failed to stop adapter cleanly: %v", err)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Spare-Link/storefront/clients"
	"github.com/Spare-Link/storefront/logger"
	"github.com/Spare-Link/storefront/readiness"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run holds the deferred cleanup so it completes before main exits.
func run(args []string) int {
	// .env.local wins over .env; neither overrides the real environment
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	backendURL := os.Getenv("MEDUSA_BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:9000"
	}

	var opts readiness.Options
	fs := flag.NewFlagSet("wait-for-backend", flag.ContinueOnError)
	fs.StringVar(&opts.URL, "url", backendURL, "commerce backend base URL")
	fs.StringVar(&opts.Path, "path", readiness.DefaultPath, "path that must answer 200")
	fs.DurationVar(&opts.Interval, "interval", readiness.DefaultInterval, "delay between attempts")
	fs.DurationVar(&opts.RequestTimeout, "request-timeout", readiness.DefaultRequestTimeout, "per-attempt timeout")
	fs.DurationVar(&opts.Timeout, "timeout", readiness.DefaultTimeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := clients.NewCommerceClient(opts.URL, "", opts.RequestTimeout, nil, 0, log)
	if err := readiness.Wait(ctx, client, opts, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

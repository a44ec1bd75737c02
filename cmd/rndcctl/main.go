package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/rndcctl/internal/config"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
	"github.com/danmuck/rndcctl/internal/rndc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	logs.ConfigureRuntime()

	fs := flag.NewFlagSet("rndcctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: rndcctl [flags] command [args...]")
		fs.PrintDefaults()
	}
	opts, err := parseFlags(fs, argv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.writeConfig != "" {
		if err := config.WriteTemplate(opts.writeConfig, false); err != nil {
			fmt.Fprintf(stderr, "rndcctl: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote config template to %s\n", opts.writeConfig)
		return 0
	}
	if !opts.interactive && opts.command() == "" {
		fs.Usage()
		return 2
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "rndcctl: %v\n", err)
		return 1
	}

	if opts.metricsAddr != "" {
		observability.RegisterMetrics()
		go serveMetrics(opts.metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Session.ConnectTimeout+cfg.Session.IdleTimeout)
	client, err := rndc.Connect(connectCtx, cfg.Host, cfg.Port, cfg.Secret, cfg.Algorithm,
		rndc.WithSessionConfig(cfg.Session))
	cancel()
	if err != nil {
		fmt.Fprintf(stderr, "rndcctl: connect %s:%d: %v\n", cfg.Host, cfg.Port, err)
		return 1
	}
	defer client.Close()

	if opts.interactive {
		if err := runConsole(ctx, client, cfg); err != nil {
			fmt.Fprintf(stderr, "rndcctl: %v\n", err)
			return 1
		}
		return 0
	}
	if err := runCommand(ctx, client, opts.command(), cfg.Gateway.CommandTimeout, stdout, stderr); err != nil {
		return 1
	}
	return 0
}

// runCommand executes one command and prints text to stdout and err to stderr.
func runCommand(ctx context.Context, client *rndc.Client, command string, timeout time.Duration, stdout, stderr io.Writer) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := client.Command(ctx, command)
	if resp.Text != "" {
		fmt.Fprintln(stdout, resp.Text)
	}
	if resp.Err != "" {
		fmt.Fprintf(stderr, "rndcctl: '%s' failed: %s\n", command, resp.Err)
		return err
	}
	if err != nil {
		fmt.Fprintf(stderr, "rndcctl: '%s' failed: %v\n", command, err)
	}
	return err
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logs.Infof("rndcctl metrics listening addr=%q", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logs.Errf("rndcctl metrics addr=%q err=%v", addr, err)
	}
}

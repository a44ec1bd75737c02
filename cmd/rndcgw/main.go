package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/rndcctl/internal/config"
	"github.com/danmuck/rndcctl/internal/gateway"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/observability"
)

func main() {
	path := flag.String("c", "config.toml", "config file (TOML)")
	listen := flag.String("listen", "", "override [gateway] listen_addr")
	flag.Parse()

	logs.ConfigureRuntime()
	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rndcgw: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Gateway.ListenAddr = *listen
	}

	observability.RegisterMetrics()
	svc := gateway.NewService(cfg, observability.InitLogger("rndcgw", os.Stdout))
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "rndcgw: %v\n", err)
		os.Exit(1)
	}
}

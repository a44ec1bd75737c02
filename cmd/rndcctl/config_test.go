package main

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/danmuck/rndcctl/internal/config"
	"github.com/danmuck/rndcctl/internal/testutil/testlog"
)

func parse(t *testing.T, argv ...string) options {
	t.Helper()
	fs := flag.NewFlagSet("rndcctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o, err := parseFlags(fs, argv)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return o
}

func TestResolveConfigFromExampleFile(t *testing.T) {
	testlog.Start(t)
	cfg, err := resolveConfig(parse(t, "-c", "ex.config.toml", "status"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 953 {
		t.Fatalf("server=%s:%d", cfg.Host, cfg.Port)
	}
	if cfg.KeyName != "rndc-key" || cfg.Algorithm != "hmac-sha256" {
		t.Fatalf("key=%s alg=%s", cfg.KeyName, cfg.Algorithm)
	}
	if cfg.Secret != "ZXhhbXBsZS1ybmRjLWtleS1ub3QtZm9yLXByb2R1Y3Rpb24=" {
		t.Fatalf("secret=%q", cfg.Secret)
	}
	if cfg.Session.IdleTimeout != 30*time.Second || cfg.Gateway.CommandTimeout != 10*time.Second {
		t.Fatalf("session=%+v gateway=%+v", cfg.Session, cfg.Gateway)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	testlog.Start(t)
	o := parse(t, "-c", "ex.config.toml", "-s", "ns2.example.net", "-p", "8953", "-a", "md5", "-y", "b3RoZXI=", "reload", "example.com")
	cfg, err := resolveConfig(o)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Host != "ns2.example.net" || cfg.Port != 8953 || cfg.Algorithm != "md5" || cfg.Secret != "b3RoZXI=" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if got := o.command(); got != "reload example.com" {
		t.Fatalf("command=%q", got)
	}
}

func TestKeyFileFlag(t *testing.T) {
	testlog.Start(t)
	cfg, err := resolveConfig(parse(t, "-k", "ex.rndc.key", "status"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.KeyName != "rndc-key" || cfg.Algorithm != "hmac-sha256" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestResolveConfigRequiresSecret(t *testing.T) {
	testlog.Start(t)
	if _, err := resolveConfig(parse(t, "status")); !errors.Is(err, config.ErrSecretRequired) {
		t.Fatalf("err=%v", err)
	}
}

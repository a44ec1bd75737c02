package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/danmuck/rndcctl/internal/config"
)

// rndcctl command-line options. Flags override the config file.
type options struct {
	configPath  string
	host        string
	port        int
	keyFile     string
	keyName     string
	secret      string
	algorithm   string
	interactive bool
	metricsAddr string
	writeConfig string
	args        []string
}

func parseFlags(fs *flag.FlagSet, argv []string) (options, error) {
	var o options
	fs.StringVar(&o.configPath, "c", "", "config file (TOML)")
	fs.StringVar(&o.host, "s", "", "server host")
	fs.IntVar(&o.port, "p", 0, "server control port")
	fs.StringVar(&o.keyFile, "k", "", "BIND key file (rndc.key)")
	fs.StringVar(&o.keyName, "n", "", "key name inside the key file")
	fs.StringVar(&o.secret, "y", "", "base64 shared secret")
	fs.StringVar(&o.algorithm, "a", "", "HMAC algorithm (md5, sha1, sha224, sha256, sha384, sha512)")
	fs.BoolVar(&o.interactive, "i", false, "interactive console")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.StringVar(&o.writeConfig, "write-config", "", "write a config template to this path and exit")
	if err := fs.Parse(argv); err != nil {
		return options{}, err
	}
	o.args = fs.Args()
	return o, nil
}

func (o options) command() string {
	return strings.TrimSpace(strings.Join(o.args, " "))
}

// rndcctl resolver: config file (or defaults), then key file, then flags.
func resolveConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if path := strings.TrimSpace(o.configPath); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if o.keyName != "" {
		cfg.KeyName = o.keyName
	}
	if path := strings.TrimSpace(o.keyFile); path != "" {
		key, err := config.LoadKey(path, o.keyName)
		if err != nil {
			return config.Config{}, err
		}
		cfg.KeyName = key.Name
		cfg.Secret = key.Secret
		if key.Algorithm != "" {
			cfg.Algorithm = key.Algorithm
		}
	}
	if o.host != "" {
		cfg.Host = strings.TrimSpace(o.host)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.secret != "" {
		cfg.Secret = strings.TrimSpace(o.secret)
	}
	if o.algorithm != "" {
		cfg.Algorithm = strings.TrimSpace(o.algorithm)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("rndcctl config: %w", err)
	}
	return cfg, nil
}

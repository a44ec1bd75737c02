package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/rndcctl/internal/auth"
	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/danmuck/rndcctl/internal/protocol/frame"
	"github.com/danmuck/rndcctl/internal/protocol/session"
	"github.com/danmuck/rndcctl/internal/rndc"
)

const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 953
	DefaultAlgorithm   = "hmac-sha256"
	DefaultListenAddr  = "127.0.0.1:9530"
	DefaultCommandWait = 10 * time.Second
)

var (
	ErrHostRequired   = errors.New("config: server host required")
	ErrInvalidPort    = errors.New("config: server port out of range")
	ErrSecretRequired = errors.New("config: key secret or key file required")
)

// File mirrors config.toml.
type File struct {
	Server  ServerFile  `toml:"server"`
	Key     KeyFile     `toml:"key"`
	Session SessionFile `toml:"session"`
	Gateway GatewayFile `toml:"gateway"`
}

type ServerFile struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type KeyFile struct {
	Name      string `toml:"name"`
	Algorithm string `toml:"algorithm"`
	Secret    string `toml:"secret,omitempty"`
	File      string `toml:"file,omitempty"`
}

type SessionFile struct {
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
	IdleTimeoutMS    int    `toml:"idle_timeout_ms"`
	WriteTimeoutMS   int    `toml:"write_timeout_ms"`
	MaxFrameBytes    uint32 `toml:"max_frame_bytes"`
}

type GatewayFile struct {
	ListenAddr       string   `toml:"listen_addr"`
	CorsOrigins      []string `toml:"cors_origins"`
	CommandTimeoutMS int      `toml:"command_timeout_ms"`
}

// Config is the resolved client configuration.
type Config struct {
	Host      string
	Port      int
	KeyName   string
	Algorithm string
	// Secret is the base64 key text as it appears in rndc.key.
	Secret  string
	Session session.Config
	Gateway Gateway
}

type Gateway struct {
	ListenAddr     string
	CorsOrigins    []string
	CommandTimeout time.Duration
}

func Default() Config {
	return Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		Algorithm: DefaultAlgorithm,
		Session:   session.DefaultConfig(),
		Gateway: Gateway{
			ListenAddr:     DefaultListenAddr,
			CommandTimeout: DefaultCommandWait,
		},
	}
}

// Load overlays path onto Default. A [key] file entry is read as a BIND key
// file, relative to the config directory, and fills any key field the TOML
// left unset.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load rndc config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logs.Warnf("config.Load path=%s unknown keys=%v", path, undecoded)
	}

	if meta.IsDefined("server", "host") {
		cfg.Host = strings.TrimSpace(raw.Server.Host)
	}
	if meta.IsDefined("server", "port") {
		cfg.Port = raw.Server.Port
	}
	if meta.IsDefined("key", "name") {
		cfg.KeyName = strings.TrimSpace(raw.Key.Name)
	}
	algorithmSet := meta.IsDefined("key", "algorithm")
	if algorithmSet {
		cfg.Algorithm = strings.TrimSpace(raw.Key.Algorithm)
	}
	if meta.IsDefined("key", "secret") {
		cfg.Secret = strings.TrimSpace(raw.Key.Secret)
	}
	if meta.IsDefined("session", "connect_timeout_ms") {
		cfg.Session.ConnectTimeout = millis(raw.Session.ConnectTimeoutMS)
	}
	if meta.IsDefined("session", "idle_timeout_ms") {
		cfg.Session.IdleTimeout = millis(raw.Session.IdleTimeoutMS)
	}
	if meta.IsDefined("session", "write_timeout_ms") {
		cfg.Session.WriteTimeout = millis(raw.Session.WriteTimeoutMS)
	}
	if meta.IsDefined("session", "max_frame_bytes") {
		cfg.Session.Limits = frame.Limits{MaxFrameBytes: raw.Session.MaxFrameBytes}
	}
	if meta.IsDefined("gateway", "listen_addr") {
		cfg.Gateway.ListenAddr = strings.TrimSpace(raw.Gateway.ListenAddr)
	}
	if meta.IsDefined("gateway", "cors_origins") {
		cfg.Gateway.CorsOrigins = raw.Gateway.CorsOrigins
	}
	if meta.IsDefined("gateway", "command_timeout_ms") {
		cfg.Gateway.CommandTimeout = millis(raw.Gateway.CommandTimeoutMS)
	}

	if keyPath := strings.TrimSpace(raw.Key.File); keyPath != "" {
		if !filepath.IsAbs(keyPath) {
			keyPath = filepath.Join(filepath.Dir(path), keyPath)
		}
		key, err := LoadKey(keyPath, cfg.KeyName)
		if err != nil {
			return Config{}, err
		}
		cfg.ApplyKey(key, !algorithmSet)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	logs.Debugf("config.Load path=%s host=%s port=%d key=%q", path, cfg.Host, cfg.Port, cfg.KeyName)
	return cfg, nil
}

// ApplyKey copies a parsed key clause into cfg. The algorithm is only taken
// when overrideAlgorithm is set.
func (c *Config) ApplyKey(key Key, overrideAlgorithm bool) {
	if c.KeyName == "" {
		c.KeyName = key.Name
	}
	if c.Secret == "" {
		c.Secret = key.Secret
	}
	if overrideAlgorithm && key.Algorithm != "" {
		c.Algorithm = key.Algorithm
	}
}

// Validate checks the fields needed to open a session.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return ErrHostRequired
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if strings.TrimSpace(c.Secret) == "" {
		return ErrSecretRequired
	}
	if _, err := rndc.DecodeSecret(c.Secret); err != nil {
		return err
	}
	if _, err := auth.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	return nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

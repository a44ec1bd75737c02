package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// TemplateFile is the File written by WriteTemplate.
func TemplateFile() File {
	def := Default()
	return File{
		Server: ServerFile{Host: def.Host, Port: def.Port},
		Key: KeyFile{
			Name:      "rndc-key",
			Algorithm: def.Algorithm,
			File:      "rndc.key",
		},
		Session: SessionFile{
			ConnectTimeoutMS: int(def.Session.ConnectTimeout.Milliseconds()),
			IdleTimeoutMS:    int(def.Session.IdleTimeout.Milliseconds()),
			WriteTimeoutMS:   int(def.Session.WriteTimeout.Milliseconds()),
			MaxFrameBytes:    def.Session.Limits.MaxFrameBytes,
		},
		Gateway: GatewayFile{
			ListenAddr:       def.Gateway.ListenAddr,
			CorsOrigins:      []string{"http://localhost:3000"},
			CommandTimeoutMS: int(def.Gateway.CommandTimeout.Milliseconds()),
		},
	}
}

func Template() ([]byte, error) {
	out, err := toml.Marshal(TemplateFile())
	if err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}
	return out, nil
}

func WriteTemplate(path string, overwrite bool) error {
	data, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

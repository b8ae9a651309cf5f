// Package config binds the CLI's flag surface to the server's Config type,
// so app/cmd/server stays a thin wiring layer over cobra/pflag.
package config

import (
	"time"

	"package-indexer/internal/server"
)

// Flags mirrors the depindexd command line surface, one field per flag,
// before it's translated into a server.Config.
type Flags struct {
	Host          string
	Port          int
	MaxConns      int
	ShutdownGrace time.Duration
	AdminAddr     string
	LogLevel      string
}

// DefaultFlags returns the flag defaults shown in --help.
func DefaultFlags() Flags {
	d := server.DefaultConfig()
	return Flags{
		Host:          d.BindHost,
		Port:          d.BindPort,
		MaxConns:      d.MaxConns,
		ShutdownGrace: d.ShutdownGrace,
		AdminAddr:     "",
		LogLevel:      "info",
	}
}

// ServerConfig projects Flags down to the fields server.Config understands.
func (f Flags) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.BindHost = f.Host
	cfg.BindPort = f.Port
	cfg.MaxConns = f.MaxConns
	if f.ShutdownGrace > 0 {
		cfg.ShutdownGrace = f.ShutdownGrace
	}
	return cfg
}

// Package config provides configuration management for the connector node.
// config is built on top of viper (files and environment) and cobra (flags).
package config

import (
	"time"
)

type CompositorContract interface {
	LoadEnv() error
	LoadConf(path string) error
}

type Compositor struct {
	CMDLine *CMDLine
	Conf    *Conf
	Env     *Env
}

type Conf struct {
	Node       *Node       `mapstructure:"node"`
	HTTPServer *HTTPServer `mapstructure:"http_server"`
	TLS        *TLS        `mapstructure:"tls"`
	Log        *Log        `mapstructure:"log"`
	Connector  *Connector  `mapstructure:"connector"`
}

type Node struct {
	Name       *string `mapstructure:"name"`
	DataDir    *string `mapstructure:"data_dir"`
	PluginDir  *string `mapstructure:"plugin_dir"`
	TempDir    *string `mapstructure:"temp_dir"`
	ShowConfig *bool   `mapstructure:"show_config"`
}

type HTTPServer struct {
	Address     *string        `mapstructure:"address"`
	Port        *string        `mapstructure:"port"`
	Route       *string        `mapstructure:"route"`
	Timeout     *time.Duration `mapstructure:"timeout"`
	IdleTimeout *time.Duration `mapstructure:"idle_timeout"`
	MaxConns    *int           `mapstructure:"max_conns"`
	MaxUpload   *int64         `mapstructure:"max_upload"`
}

type TLS struct {
	TlsEnabled *bool   `mapstructure:"enabled"`
	CertFile   *string `mapstructure:"cert_file"`
	KeyFile    *string `mapstructure:"key_file"`
}

type Log struct {
	Level   *string `mapstructure:"level"`
	OutPath *string `mapstructure:"output"`
}

type Connector struct {
	Token               *string        `mapstructure:"token"`
	TokenMode           *string        `mapstructure:"token_mode"`
	SessionLifetime     *time.Duration `mapstructure:"session_lifetime"`
	AuthDelay           *time.Duration `mapstructure:"auth_delay"`
	LinkStore           *string        `mapstructure:"link_store"`
	SQLitePath          *string        `mapstructure:"sqlite_path"`
	PostgresDSN         *string        `mapstructure:"postgres_dsn"`
	IsolatePluginFaults *bool          `mapstructure:"isolate_plugin_faults"`
	FetchTimeout        *time.Duration `mapstructure:"fetch_timeout"`
	FeaturesFile        *string        `mapstructure:"features_file"`
}

// Env structure for environment variables
type Env struct {
	ConfigPath *string `mapstructure:"config_path"`
	NodePath   *string `mapstructure:"node_path"`
}

type CMDLine struct {
	Node  Root
	Links Links
}

type Root struct {
	ConfigPath string `persistent:"true" full:"config" short:"c" def:"" desc:"Path to configuration file, overrides CONNECTOR_CONFIG_PATH"`
	Debug      bool   `persistent:"true" full:"debug" short:"d" def:"false" desc:"Force debug logging"`
}

type Links struct {
	Model string `persistent:"true" full:"model" short:"m" def:"" desc:"Model type, e.g. Product; empty means every type"`
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCompositor() *Compositor {
	return &Compositor{}
}

func (c *Compositor) LoadEnv() error {
	v := viper.New()

	// defaults
	v.SetDefault("config_path", "./config.yaml")
	v.SetDefault("node_path", "./")

	// CONNECTOR_*
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return fmt.Errorf("error unmarshaling env: %w", err)
	}

	c.Env = &env
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.name", "connector")
	v.SetDefault("node.data_dir", "./data")
	v.SetDefault("node.plugin_dir", "./plugins")
	v.SetDefault("node.temp_dir", "")
	v.SetDefault("node.show_config", false)
	v.SetDefault("http_server.address", "0.0.0.0")
	v.SetDefault("http_server.port", "8080")
	v.SetDefault("http_server.route", "/connector")
	v.SetDefault("http_server.timeout", "5m")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("http_server.max_conns", 100)
	v.SetDefault("http_server.max_upload", 256<<20)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "./cert/server.crt")
	v.SetDefault("tls.key_file", "./cert/server.key")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", OutStderr)
	v.SetDefault("connector.token", "")
	v.SetDefault("connector.token_mode", "plain")
	v.SetDefault("connector.session_lifetime", "1h")
	v.SetDefault("connector.auth_delay", "2s")
	v.SetDefault("connector.link_store", LinkStoreSQLite)
	v.SetDefault("connector.sqlite_path", "")
	v.SetDefault("connector.postgres_dsn", "")
	v.SetDefault("connector.isolate_plugin_faults", false)
	v.SetDefault("connector.fetch_timeout", "30s")
	v.SetDefault("connector.features_file", "")
}

// LoadConf reads the YAML config at path. A missing file leaves the
// defaults and CONNECTOR_ overrides in place.
func (c *Compositor) LoadConf(path string) error {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading config: %w", err)
	}

	var cfg Conf
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	c.Conf = &cfg
	return nil
}

func (c *Conf) validate() error {
	switch *c.Connector.LinkStore {
	case LinkStoreSQLite:
	case LinkStorePostgres:
		if *c.Connector.PostgresDSN == "" {
			return errors.New("connector.postgres_dsn is required for the postgres link store")
		}
	default:
		return fmt.Errorf("unknown connector.link_store %q", *c.Connector.LinkStore)
	}
	return nil
}

func (c *Compositor) LoadCMDLine(root *cobra.Command) {
	cmdLine := &CMDLine{}
	c.CMDLine = cmdLine

	t := reflect.TypeOf(cmdLine).Elem()
	v := reflect.ValueOf(cmdLine).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		ptr := fieldVal.Addr().Interface()
		use := strings.ToLower(field.Name)

		var cmd *cobra.Command
		for _, sub := range root.Commands() {
			if sub.Use == use {
				cmd = sub
				break
			}
		}

		if use == root.Use {
			cmd = root
		}

		if cmd == nil {
			continue
		}

		Unmarshal(cmd, ptr)
	}
}

// Unmarshal registers one flag per field of target, described by the
// persistent, full, short, def and desc struct tags.
func Unmarshal(cmd *cobra.Command, target any) {
	t := reflect.TypeOf(target).Elem()
	v := reflect.ValueOf(target).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		valPtr := v.Field(i).Addr().Interface()

		full := field.Tag.Get("full")
		short := field.Tag.Get("short")
		def := field.Tag.Get("def")
		desc := field.Tag.Get("desc")
		isPersistent := field.Tag.Get("persistent") == "true"

		flagSet := cmd.Flags()
		if isPersistent {
			flagSet = cmd.PersistentFlags()
		}

		switch field.Type.Kind() {
		case reflect.String:
			flagSet.StringVarP(valPtr.(*string), full, short, def, desc)

		case reflect.Bool:
			defVal, err := strconv.ParseBool(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default bool: %q\n", def)
			}
			flagSet.BoolVarP(valPtr.(*bool), full, short, defVal, desc)

		case reflect.Int:
			defVal, err := strconv.Atoi(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default int: %q\n", def)
			}
			flagSet.IntVarP(valPtr.(*int), full, short, defVal, desc)

		default:
			fmt.Printf("unsupported field type: %s\n", field.Type.Kind())
		}
	}
}

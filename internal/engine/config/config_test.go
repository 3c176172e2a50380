package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConf(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, c *Conf)
	}{
		{
			name: "defaults",
			body: "",
			check: func(t *testing.T, c *Conf) {
				assert.Equal(t, "8080", *c.HTTPServer.Port)
				assert.Equal(t, "/connector", *c.HTTPServer.Route)
				assert.Equal(t, time.Hour, *c.Connector.SessionLifetime)
				assert.Equal(t, LinkStoreSQLite, *c.Connector.LinkStore)
				assert.Equal(t, OutStderr, *c.Log.OutPath)
			},
		},
		{
			name: "file values",
			body: "connector:\n  token: abc\n  auth_delay: 10ms\nhttp_server:\n  max_conns: 5\n",
			check: func(t *testing.T, c *Conf) {
				assert.Equal(t, "abc", *c.Connector.Token)
				assert.Equal(t, 10*time.Millisecond, *c.Connector.AuthDelay)
				assert.Equal(t, 5, *c.HTTPServer.MaxConns)
			},
		},
		{
			name: "environment wins",
			body: "connector:\n  token: abc\n",
			env:  map[string]string{"CONNECTOR_CONNECTOR_TOKEN": "from-env"},
			check: func(t *testing.T, c *Conf) {
				assert.Equal(t, "from-env", *c.Connector.Token)
			},
		},
		{
			name:    "postgres without dsn",
			body:    "connector:\n  link_store: postgres\n",
			wantErr: true,
		},
		{
			name:    "unknown store",
			body:    "connector:\n  link_store: mongo\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c := NewCompositor()
			err := c.LoadConf(writeConf(t, tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c.Conf)
		})
	}
}

func TestLoadConf_MissingFile(t *testing.T) {
	c := NewCompositor()
	require.NoError(t, c.LoadConf(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, "connector", *c.Conf.Node.Name)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CONNECTOR_CONFIG_PATH", "/etc/connector.yaml")
	c := NewCompositor()
	require.NoError(t, c.LoadEnv())
	assert.Equal(t, "/etc/connector.yaml", *c.Env.ConfigPath)
	assert.Equal(t, "./", *c.Env.NodePath)
}

func TestLoadCMDLine(t *testing.T) {
	root := &cobra.Command{Use: "node"}
	run := &cobra.Command{Use: "run", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(run)

	c := NewCompositor()
	c.LoadCMDLine(root)
	root.SetArgs([]string{"run", "-c", "/tmp/x.yaml"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "/tmp/x.yaml", c.CMDLine.Node.ConfigPath)
}

func TestPrint_MasksSecrets(t *testing.T) {
	c := NewCompositor()
	require.NoError(t, c.LoadConf(writeConf(t, "connector:\n  token: supersecret\n")))

	var buf bytes.Buffer
	c.Print(&buf, c.Conf)
	assert.Contains(t, buf.String(), `token: "********"`)
	assert.NotContains(t, buf.String(), "supersecret")
	assert.Contains(t, buf.String(), "session_lifetime: 1h0m0s")
}

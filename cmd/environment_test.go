package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/container"
	"github.com/testenv/testenv/internal/container/containertest"
	"github.com/testenv/testenv/internal/failure"
)

const testConfig = `engine = "mssql"

[container]
name = "testenv-mssql"
port = 14330
docker_hosts = ["tcp://build-agent:2375"]

[schema]
sql_folder = "sql"
databases = ["A"]

[history]
enabled = true
`

// fakeBackends replaces the docker client with in-memory backends keyed by
// host for the duration of the test.
func fakeBackends(t *testing.T) map[string]*containertest.Fake {
	t.Helper()
	fakes := map[string]*containertest.Fake{}
	previous := newBackend
	newBackend = func(host string) (container.Backend, error) {
		f, ok := fakes[host]
		if !ok {
			f = containertest.New(host)
			fakes[host] = f
		}
		return f, nil
	}
	t.Cleanup(func() { newBackend = previous })
	return fakes
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(config.EnvDBPassword, "Str0ng!Passw0rd")
	t.Setenv(config.EnvPullUsername, "")
	t.Setenv(config.EnvPullPassword, "")
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestResolveWorkingPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := resolveWorkingPath(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Errorf("expected %q, got %q", dir, got)
	}

	for _, bad := range []string{filepath.Join(dir, "missing"), file} {
		_, err := resolveWorkingPath(bad)
		var cfgErr *failure.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("resolveWorkingPath(%q): expected ConfigError, got %v", bad, err)
		}
	}
}

func TestNewEnvironmentConnectsEveryHost(t *testing.T) {
	fakes := fakeBackends(t)
	cfg, err := config.LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	env, err := newEnvironment(cfg, nil)
	if err != nil {
		t.Fatalf("newEnvironment failed: %v", err)
	}
	defer env.Close()

	if len(env.backends) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(env.backends))
	}
	if env.backends[0] != fakes[""] {
		t.Error("expected the environment's engine to be the primary backend")
	}

	ep := env.endpoint()
	if ep.Host != "localhost" || ep.Port != 14330 || ep.User != "sa" || ep.Password != "Str0ng!Passw0rd" {
		t.Errorf("unexpected endpoint %+v", ep)
	}
}

func TestDestroyCommandRecordsHistory(t *testing.T) {
	fakes := fakeBackends(t)
	path := writeTestConfig(t)

	primary := containertest.New("")
	primary.AddContainer("testenv-mssql", true)
	remote := containertest.New("tcp://build-agent:2375")
	remote.AddContainer("testenv-mssql", false)
	fakes[""] = primary
	fakes["tcp://build-agent:2375"] = remote

	out, err := runCommand(t, "destroy", "--config", path)
	if err != nil {
		t.Fatalf("destroy failed: %v", err)
	}
	if !strings.Contains(out, "destroyContainer") {
		t.Errorf("expected the stage summary, got %q", out)
	}
	if n := len(primary.Live()) + len(remote.Live()); n != 0 {
		t.Errorf("expected every container to be removed, %d left", n)
	}

	out, err = runCommand(t, "history", "--config", path, "-n", "5")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "testenv destroy") || !strings.Contains(out, "succeeded") {
		t.Errorf("expected the destroy run in history, got %q", out)
	}
}

func TestLoadSchemaRejectsMissingWorkingPath(t *testing.T) {
	fakeBackends(t)
	path := writeTestConfig(t)

	_, err := runCommand(t, "load-schema", "--config", path, "-w", filepath.Join(t.TempDir(), "nope"))
	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(cfgErr.Reason, "working path") {
		t.Errorf("unexpected reason %q", cfgErr.Reason)
	}
}

package schemapull

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/container/containertest"
	"github.com/testenv/testenv/internal/failure"
)

func pullConfig() config.SchemaPullConfig {
	return config.SchemaPullConfig{
		BaseImage:      "python:3.8",
		Image:          "testenv-scripter",
		ContainerName:  "testenv-schema-pull",
		Username:       "reader",
		Password:       "p@ss word",
		TimeoutSeconds: 1,
		Tool:           "mssql-scripter",
		ToolFlags:      []string{"--script-create", "--exclude-headers"},
		BuildSteps:     []string{"pip install --upgrade pip", "pip install mssql-scripter"},
		Sources: []config.PullSource{
			{Host: "db1.internal", Database: "Billing", Objects: []string{"dbo.Invoices", "dbo.Payments"}},
			{Host: "db2.internal", Database: "Accounts", Objects: []string{"dbo.Users"}},
		},
	}
}

func newPuller(t *testing.T, backend *containertest.Fake) (*Puller, string) {
	t.Helper()
	workDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(workDir, "sql"), 0o755); err != nil {
		t.Fatalf("Failed to create sql dir: %v", err)
	}
	p := New(pullConfig(), "sql", backend, nil)
	p.Now = func() time.Time { return fixedTime }
	p.PollInterval = 10 * time.Millisecond
	return p, workDir
}

func completesAfter(n int) func(*containertest.Container, int) string {
	return func(_ *containertest.Container, polls int) string {
		if polls < n {
			return "Scripting request submitted\n"
		}
		return "Scripting request submitted\n" + CompletedMessage + "\n"
	}
}

func TestCommands(t *testing.T) {
	p := New(pullConfig(), "sql", containertest.New("local"), nil)

	commands, err := p.Commands()
	if err != nil {
		t.Fatalf("Commands failed: %v", err)
	}
	if len(commands) != 2 {
		t.Fatalf("Expected 2 commands, got %d", len(commands))
	}
	expected := "mssql-scripter --script-create --exclude-headers -S db1.internal -d Billing -U reader -P 'p@ss word' -f /sql/Billing-SchemaDump.sql --include-objects dbo.Invoices dbo.Payments"
	if commands[0] != expected {
		t.Errorf("Unexpected command:\n got %s\nwant %s", commands[0], expected)
	}
}

func TestCommandsRequireCredentials(t *testing.T) {
	cfg := pullConfig()
	cfg.Password = ""
	_, err := New(cfg, "sql", containertest.New("local"), nil).Commands()

	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestDockerfile(t *testing.T) {
	p := New(pullConfig(), "sql", containertest.New("local"), nil)
	expected := "FROM python:3.8\nRUN pip install --upgrade pip\nRUN pip install mssql-scripter\n"
	if got := p.Dockerfile(); got != expected {
		t.Errorf("Unexpected Dockerfile:\n%s", got)
	}
}

func TestPullSuccess(t *testing.T) {
	backend := containertest.New("local")
	backend.LogOutput = completesAfter(3)
	p, workDir := newPuller(t, backend)
	writeFile(t, filepath.Join(workDir, "sql", "Billing-SchemaDump.sql"), "old")

	if err := p.Pull(context.Background(), workDir); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}

	if _, ok := backend.Built["testenv-scripter"]; !ok {
		t.Error("Expected the tool image to be built")
	}
	if len(backend.Live()) != 0 {
		t.Errorf("Expected the pull container to be removed, got %+v", backend.Live())
	}
	if _, err := os.Stat(filepath.Join(workDir, "sql", "Billing-SchemaDump.sql")); !os.IsNotExist(err) {
		t.Error("Expected the previous dump to be moved to backups")
	}

	var created bool
	for _, call := range backend.CallLog() {
		if call == "create testenv-schema-pull" {
			created = true
		}
	}
	if !created {
		t.Fatalf("Expected the pull container to be created, calls: %v", backend.CallLog())
	}
}

func TestPullContainerCommand(t *testing.T) {
	backend := containertest.New("local")
	var script, bind string
	backend.LogOutput = func(c *containertest.Container, polls int) string {
		script = c.Spec.Cmd[len(c.Spec.Cmd)-1]
		bind = c.Spec.Binds[0]
		return CompletedMessage
	}
	p, workDir := newPuller(t, backend)

	if err := p.Pull(context.Background(), workDir); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if !strings.HasSuffix(script, "; echo "+CompletedMessage) {
		t.Errorf("Expected the completion sentinel after the dumps, got %q", script)
	}
	if strings.Count(script, "mssql-scripter") != 2 {
		t.Errorf("Expected both dumps in one shell invocation, got %q", script)
	}
	if !strings.HasSuffix(bind, ":/sql") || !strings.HasPrefix(bind, workDir) {
		t.Errorf("Expected the SQL folder mounted at /sql, got %q", bind)
	}
}

func TestPullReusesImage(t *testing.T) {
	backend := containertest.New("local")
	backend.AddImage("testenv-scripter")
	backend.LogOutput = completesAfter(1)
	p, workDir := newPuller(t, backend)

	if err := p.Pull(context.Background(), workDir); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if len(backend.Built) != 0 {
		t.Errorf("Expected the existing image to be reused, built %v", backend.Built)
	}
}

func TestPullTimeoutRemovesContainer(t *testing.T) {
	backend := containertest.New("local")
	backend.LogOutput = completesAfter(1 << 30)
	p, workDir := newPuller(t, backend)

	err := p.Pull(context.Background(), workDir)
	if !errors.Is(err, failure.ErrSchemaPullTimeout) {
		t.Fatalf("Expected ErrSchemaPullTimeout, got %v", err)
	}
	if len(backend.Live()) != 0 {
		t.Errorf("Expected the pull container to be removed after a timeout, got %+v", backend.Live())
	}
}

func TestPullRemovesStaleContainer(t *testing.T) {
	backend := containertest.New("local")
	stale := backend.AddContainer("testenv-schema-pull", false)
	backend.LogOutput = completesAfter(1)
	p, workDir := newPuller(t, backend)

	if err := p.Pull(context.Background(), workDir); err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if !stale.Removed {
		t.Error("Expected the stale container to be removed")
	}
}

func TestPullStartFailureRemovesContainer(t *testing.T) {
	backend := containertest.New("local")
	backend.Errors = map[string]error{"start": errors.New("port is already allocated")}
	p, workDir := newPuller(t, backend)

	if err := p.Pull(context.Background(), workDir); err == nil {
		t.Fatal("Expected Pull to fail when the container cannot start")
	}
	if len(backend.Live()) != 0 {
		t.Errorf("Expected the pull container to be removed, got %+v", backend.Live())
	}
}

func TestPullMissingSQLFolder(t *testing.T) {
	backend := containertest.New("local")
	p := New(pullConfig(), "missing", backend, nil)

	err := p.Pull(context.Background(), t.TempDir())
	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if len(backend.Live()) != 0 {
		t.Errorf("Expected no container to be created")
	}
}

package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestStageErrorUnwrapsToCause(t *testing.T) {
	cause := Statement("B", 2, "SELEC 1", errors.New("syntax error"))
	err := Stage("load-sql", cause)

	var stmtErr *StatementError
	if !errors.As(err, &stmtErr) {
		t.Fatalf("expected StatementError in chain, got %v", err)
	}
	if stmtErr.Database != "B" || stmtErr.Index != 2 {
		t.Errorf("unexpected statement error: %+v", stmtErr)
	}

	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "load-sql" {
		t.Errorf("expected stage load-sql, got %v", err)
	}
}

func TestStageNilStaysNil(t *testing.T) {
	if err := Stage("anything", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestTimeoutMatchesSentinel(t *testing.T) {
	err := Timeout(ErrHealthCheckTimeout, "waiting for testenv-mssql", 2*time.Second)
	if !errors.Is(err, ErrHealthCheckTimeout) {
		t.Fatalf("expected ErrHealthCheckTimeout, got %v", err)
	}
	if errors.Is(err, ErrSchemaPullTimeout) {
		t.Fatal("health timeout must not match the schema pull sentinel")
	}
	if !strings.Contains(err.Error(), "2s") {
		t.Errorf("expected deadline in message, got %q", err.Error())
	}
}

func TestCleanupErrorPrioritizesCause(t *testing.T) {
	cause := Config("/work/sql", "invalid directory for SQL files")
	err := &CleanupError{Cause: cause, Cleanup: errors.New("permission denied")}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError to unwrap, got %v", err)
	}

	msg := err.Error()
	if strings.Index(msg, "invalid directory") > strings.Index(msg, "permission denied") {
		t.Errorf("expected cause before cleanup failure, got %q", msg)
	}

	detailed := fmt.Sprintf("%+v", err)
	if !strings.Contains(detailed, "cleanup also failed") {
		t.Errorf("expected both errors in detailed output, got %q", detailed)
	}
}

func TestProcessErrorMessage(t *testing.T) {
	err := Process("dotnet build A.csproj", 1, "\nerror CS1002: ; expected\n", nil)
	if !strings.Contains(err.Error(), "exited with code 1") || !strings.Contains(err.Error(), "CS1002") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

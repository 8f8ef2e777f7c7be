package app

import (
	"bytes"
	"strings"
	"testing"
)

// TestRun_ServeCommand_FailsWithoutDatabase はserveコマンドがDB接続を試み、
// 到達できない場合はエラーで終了することを検証する。
func TestRun_ServeCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{"serve"})
	if err == nil || !strings.Contains(err.Error(), "database") {
		t.Fatalf("error = %v, want database error", err)
	}
}

// TestRun_DefaultCommand_IsServe はサブコマンド省略時にserveとして動作することを検証する。
func TestRun_DefaultCommand_IsServe(t *testing.T) {
	setTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{})
	if err == nil || !strings.Contains(err.Error(), "database") {
		t.Fatalf("error = %v, want database error", err)
	}
}

func TestRun_CleanupCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	if err := Run(&bytes.Buffer{}, []string{"cleanup"}); err == nil {
		t.Fatal("cleanup without a database should fail")
	}
}

func TestRun_MigrateCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{"migrate"})
	if err == nil || !strings.Contains(err.Error(), "migration failed") {
		t.Fatalf("error = %v, want migration error", err)
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	clearTestEnv(t)

	err := Run(&bytes.Buffer{}, []string{"serve"})
	if err == nil || !strings.Contains(err.Error(), "initialization failed") {
		t.Fatalf("error = %v, want initialization error", err)
	}
}

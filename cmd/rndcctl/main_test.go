package main

import (
	"bytes"
	"encoding/base64"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/danmuck/rndcctl/internal/auth"
	"github.com/danmuck/rndcctl/internal/protocol/schema"
	"github.com/danmuck/rndcctl/internal/protocol/wire"
	"github.com/danmuck/rndcctl/internal/testutil/rndctest"
	"github.com/danmuck/rndcctl/internal/testutil/testlog"
)

var testKey = []byte("rndcctl-test-key")

func startServer(t *testing.T, h rndctest.Handler) []string {
	t.Helper()
	alg, err := auth.ParseAlgorithm("sha256")
	if err != nil {
		t.Fatalf("algorithm: %v", err)
	}
	srv := rndctest.Start(t, alg, testKey, rndctest.WithHandler(h))
	return []string{
		"-s", srv.Host(),
		"-p", strconv.Itoa(srv.Port()),
		"-a", "sha256",
		"-y", base64.StdEncoding.EncodeToString(testKey),
	}
}

func TestRunPrintsReplyText(t *testing.T) {
	testlog.Start(t)
	args := startServer(t, func(command string, _ *wire.Table) *wire.Table {
		return rndctest.Echo(command, nil).SetString(schema.KeyText, "version: 9.18.0")
	})

	var stdout, stderr bytes.Buffer
	if code := run(append(args, "status"), &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "version: 9.18.0" {
		t.Fatalf("stdout=%q", got)
	}
}

func TestRunReportsCommandFailure(t *testing.T) {
	testlog.Start(t)
	args := startServer(t, func(command string, _ *wire.Table) *wire.Table {
		if command == schema.NullCommand {
			return rndctest.Echo(command, nil)
		}
		return rndctest.Echo(command, nil).
			SetString(schema.KeyResult, "1").
			SetString(schema.KeyErr, "unknown command")
	})

	var stdout, stderr bytes.Buffer
	if code := run(append(args, "bogus"), &stdout, &stderr); code != 1 {
		t.Fatalf("exit=%d", code)
	}
	if !strings.Contains(stderr.String(), "unknown command") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}

func TestRunWithoutCommandIsUsageError(t *testing.T) {
	testlog.Start(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-y", "c2VjcmV0"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit=%d", code)
	}
}

func TestRunWritesConfigTemplate(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-write-config", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if code := run([]string{"-write-config", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("second write exit=%d", code)
	}
}

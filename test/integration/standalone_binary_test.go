package integration

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noveum/gatebench/internal/core"
	"github.com/noveum/gatebench/internal/server/handlers"
)

// buildBinary compiles cmd/gatebench into a temp dir and returns its path.
func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary exec test is unix-focused")
	}
	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	goModPath := strings.TrimSpace(string(goModPathBytes))
	if goModPath == "" {
		t.Fatalf("go env GOMOD returned empty")
	}

	binaryPath := filepath.Join(t.TempDir(), "gatebench")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/gatebench")
	build.Dir = filepath.Dir(goModPath)
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}
	return binaryPath
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	binary := buildBinary(t)
	outside := t.TempDir()

	for _, args := range [][]string{{"version"}, {"--help"}, {"run", "--help"}, {"mock", "--help"}} {
		command := exec.Command(binary, args...)
		command.Dir = outside
		if out, err := command.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, string(out))
		}
	}
}

func TestStandaloneBinaryRejectsInvalidConfig(t *testing.T) {
	binary := buildBinary(t)

	command := exec.Command(binary, "run", "--requests", "0", "--log-dir", "")
	command.Dir = t.TempDir()
	command.Env = append(os.Environ(), "GATEBENCH_API_KEY=")
	out, err := command.CombinedOutput()
	require.Error(t, err)
	require.Contains(t, string(out), "requests must be positive")
	require.Contains(t, string(out), "api key is required")
}

func TestStandaloneBinaryRunProducesJSONReport(t *testing.T) {
	binary := buildBinary(t)
	_, gatewayURL := newUpstream(t, handlers.Options{Chunks: 3})
	_, directURL := newUpstream(t, handlers.Options{Chunks: 3})

	workDir := t.TempDir()
	reportPath := filepath.Join(workDir, "report.json")
	command := exec.Command(binary, "run",
		"--gateway-url", gatewayURL,
		"--direct-url", directURL,
		"--requests", "2",
		"--rounds", "2",
		"--pair-delay", "0s",
		"--round-cooldown", "0s",
		"--output-format", "json",
		"--out", reportPath,
		"--log-dir", workDir,
	)
	command.Dir = workDir
	command.Env = append(os.Environ(), "GATEBENCH_API_KEY=integration-key")
	if out, err := command.CombinedOutput(); err != nil {
		t.Fatalf("run failed: %v\n%s", err, string(out))
	}

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report core.Report
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Rounds, 2)
	require.Equal(t, 4, report.Gateway.Latency.Count)
	require.Equal(t, 4, report.Direct.Latency.Count)

	logs, err := filepath.Glob(filepath.Join(workDir, "gatebench_*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

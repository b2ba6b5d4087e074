// Package testutil provides the integration test harness: it stages input
// documents in a temporary workspace, runs the full generation pipeline and
// hands back the resulting output tree for assertions.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bzlcrate/internal/app"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	// WorkDir is the temporary workspace the run generated into.
	WorkDir string
}

// RunGeneration provides a standardized harness for running the pipeline
// end to end. The files map stages input documents and any pre-existing
// output files, keyed by path relative to the workspace; "metadata.json"
// and a settings file (any extension LoadFile dispatches on) are expected
// among them.
func RunGeneration(t *testing.T, files map[string]string, settingsName string) *HarnessResult {
	t.Helper()
	return RunGenerationWithConfig(t, files, app.Config{SettingsPath: settingsName})
}

// RunGenerationWithConfig is RunGeneration with caller control over the app
// configuration. MetadataPath, SettingsPath and WorkDir are resolved against
// the temporary workspace; everything else passes through.
func RunGenerationWithConfig(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	workDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(workDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	if cfg.MetadataPath == "" {
		cfg.MetadataPath = "metadata.json"
	}
	cfg.MetadataPath = filepath.Join(workDir, cfg.MetadataPath)
	cfg.SettingsPath = filepath.Join(workDir, cfg.SettingsPath)
	cfg.WorkDir = workDir
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	generator := app.NewApp(logBuffer, appConfig)
	runErr := generator.Run(context.Background())

	if os.Getenv("BZLCRATE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		WorkDir:   workDir,
	}
}

// ReadOutput reads one generated file relative to the workspace.
func (r *HarnessResult) ReadOutput(t *testing.T, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(r.WorkDir, filepath.FromSlash(relPath)))
	require.NoError(t, err)
	return string(data)
}

// OutputExists reports whether a file exists relative to the workspace.
func (r *HarnessResult) OutputExists(t *testing.T, relPath string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(r.WorkDir, filepath.FromSlash(relPath)))
	if err != nil {
		require.True(t, os.IsNotExist(err), "unexpected stat error: %v", err)
		return false
	}
	return true
}

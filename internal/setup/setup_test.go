package setup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
)

func fakeBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capdcis")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestRegisterClaudeDesktop_PreservesOtherEntries(t *testing.T) {
	desktop := filepath.Join(t.TempDir(), "Claude", "claude_desktop_config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(desktop), 0o755))
	require.NoError(t, os.WriteFile(desktop, []byte(`{
		"theme": "dark",
		"mcpServers": {"other": {"command": "/usr/bin/other"}}
	}`), 0o644))

	binary := fakeBinary(t)
	path, err := RegisterClaudeDesktop(RegisterOptions{
		DesktopConfigPath: desktop,
		BinaryPath:        binary,
		ConfigFile:        "config.yaml",
		Env:               map[string]string{"CAPDCIS_DATABASE_DRIVER": "none"},
	})
	require.NoError(t, err)
	assert.Equal(t, desktop, path)

	var written map[string]json.RawMessage
	data, err := os.ReadFile(desktop)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &written))
	assert.JSONEq(t, `"dark"`, string(written["theme"]))

	config, err := LoadClaudeDesktopConfig(desktop)
	require.NoError(t, err)
	assert.Contains(t, config.MCPServers, "other")
	entry := config.MCPServers[ServerName]
	assert.Equal(t, binary, entry.Command)
	require.Len(t, entry.Args, 3)
	assert.Equal(t, "mcp", entry.Args[0])
	assert.Equal(t, "--config", entry.Args[1])
	assert.True(t, filepath.IsAbs(entry.Args[2]))
	assert.Equal(t, "none", entry.Env["CAPDCIS_DATABASE_DRIVER"])
}

func TestRegisterClaudeDesktop_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := RegisterClaudeDesktop(RegisterOptions{
		DesktopConfigPath: filepath.Join(dir, "config.json"),
		BinaryPath:        filepath.Join(dir, "missing"),
	})
	assert.ErrorContains(t, err, "server binary not found")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, err = RegisterClaudeDesktop(RegisterOptions{DesktopConfigPath: broken, BinaryPath: fakeBinary(t)})
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestGetStatus(t *testing.T) {
	desktop := filepath.Join(t.TempDir(), "claude_desktop_config.json")

	status, err := GetStatus(desktop)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.NotEmpty(t, status.Issues)

	binary := fakeBinary(t)
	_, err = RegisterClaudeDesktop(RegisterOptions{DesktopConfigPath: desktop, BinaryPath: binary})
	require.NoError(t, err)

	status, err = GetStatus(desktop)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, []string{"mcp"}, status.Args)
	assert.Empty(t, status.Issues)

	require.NoError(t, os.Remove(binary))
	status, err = GetStatus(desktop)
	require.NoError(t, err)
	assert.Contains(t, status.Issues[0], "server binary not found")
}

func baseConfig(t *testing.T) *domain.Config {
	return &domain.Config{
		Database: domain.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "audit.db")},
		Cache:    domain.CacheConfig{Enabled: true, MaxItems: 10, DefaultTTL: time.Hour},
	}
}

func TestBootstrap(t *testing.T) {
	logger, hook := test.NewNullLogger()
	app, err := Bootstrap(context.Background(), baseConfig(t), logger, Options{})
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Audit)
	require.NotNil(t, app.cache)
	assert.Equal(t, "Checklist loaded", hook.Entries[0].Message)

	data := domain.CaseData{
		"procedure": "excision", "specimen_laterality": "left", "histologic_type": "dcis",
		"size_determinable": false, "size_extent_explanation": "fragmented specimen",
		"nuclear_grade": "grade_1", "necrosis": "not_identified", "margin_status": "dcis_present",
		"involved_margin": "medial", "lymph_nodes_submitted": false,
		"pt_category": "ptis_dcis", "pn_category": "not_assigned",
	}
	result, err := app.Assembler.Assemble(context.Background(), service.AssembleRequest{CaseID: "b-1", Source: domain.SourceCLI, Data: data})
	require.NoError(t, err)

	_, ok, err := app.Assembler.Lookup(context.Background(), result.Fingerprint)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := app.Audit.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestBootstrap_Disabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := baseConfig(t)
	cfg.Database.Driver = "none"
	cfg.Cache.Enabled = false

	app, err := Bootstrap(context.Background(), cfg, logger, Options{})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Audit)
	assert.Nil(t, app.cache)
	_, ok, err := app.Assembler.Lookup(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	app, err = Bootstrap(context.Background(), baseConfig(t), logger, Options{DisableAudit: true, DisableCache: true})
	require.NoError(t, err)
	assert.Nil(t, app.Audit)
	assert.NoError(t, app.Close())
}

func TestBootstrap_BadChecklist(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: x\nsections: []\n"), 0o644))

	_, err := Bootstrap(context.Background(), baseConfig(t), logger, Options{ChecklistFile: path})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, domain.ConfigInvalidDefinition, cfgErr.Code)
}

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/config"
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/export"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/testutil"
)

func TestMain(m *testing.M) {
	logOutput = io.Discard
	os.Exit(m.Run())
}

var backLines = []string{
	"Present Address: House 12 Street 4 Lahore",
	"Permanent Address: Village Chak 7 Faisalabad",
}

// useFakeEngine makes every command run on a scripted engine.
func useFakeEngine(t *testing.T, set detection.Set) *testutil.FakeEngine {
	t.Helper()
	eng := testutil.NewFakeEngine(set)
	old := engineFactory
	engineFactory = func(*config.Config) (engine.Factory, error) {
		return func(context.Context) (engine.Engine, error) { return eng, nil }, nil
	}
	t.Cleanup(func() {
		engineFactory = old
		_ = engine.ShutdownShared()
	})
	return eng
}

// execute runs the root command with args and resets every flag afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		for _, c := range append(rootCmd.Commands(), rootCmd) {
			resetFlags(c.Flags())
			for _, sub := range c.Commands() {
				resetFlags(sub.Flags())
			}
		}
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		if _, ok := f.Value.(pflag.SliceValue); ok || !f.Changed {
			return
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "docverify", GetRootCommand().Use)

	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	for _, name := range []string{"extract", "batch", "serve", "version", "config"} {
		assert.Contains(t, out, name)
	}
}

func TestExtractCommand(t *testing.T) {
	eng := useFakeEngine(t, testutil.Lines(backLines...))
	path := testutil.WriteImage(t, t.TempDir(), "back.png", testutil.CardImage("ADDRESS"))

	out, err := execute(t, "extract", "--type", "nicop-back", path)
	require.NoError(t, err)
	var rec extract.NICOPBack
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "House 12 Street 4 Lahore", rec.PresentAddress)
	assert.Equal(t, "Village Chak 7 Faisalabad", rec.PermanentAddress)
	assert.NotEmpty(t, eng.Calls())
	assert.True(t, eng.Closed(), "engine released after the command")
}

func TestExtractCommand_Formats(t *testing.T) {
	useFakeEngine(t, testutil.Lines(backLines...))
	path := testutil.WriteImage(t, t.TempDir(), "back.png", testutil.CardImage("ADDRESS"))

	out, err := execute(t, "extract", "--type", "nicop_back", "--format", "text", path)
	require.NoError(t, err)
	assert.Equal(t,
		"permanent_address: Village Chak 7 Faisalabad\npresent_address: House 12 Street 4 Lahore\n", out)

	out, err = execute(t, "extract", "--type", "nicop_back", "--format", "yaml", path)
	require.NoError(t, err)
	assert.Contains(t, out, "present_address: House 12 Street 4 Lahore")

	file := filepath.Join(t.TempDir(), "out.json")
	_, err = execute(t, "extract", "--type", "nicop_back", "--details", "--output-file", file, path)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document_type": "nicop_back"`)
	assert.Contains(t, string(data), `"detections"`)
}

func TestExtractCommand_Errors(t *testing.T) {
	useFakeEngine(t, nil)
	path := testutil.WriteImage(t, t.TempDir(), "blank.png", testutil.CardImage())

	_, err := execute(t, "extract", "--type", "nicop-back", path)
	assert.ErrorContains(t, err, "no text detected")

	_, err = execute(t, "extract", "--type", "driving-licence", path)
	assert.ErrorContains(t, err, "unknown document type")

	_, err = execute(t, "extract", path)
	assert.ErrorContains(t, err, `"type" not set`)
}

func TestBatchCommand(t *testing.T) {
	useFakeEngine(t, testutil.Lines(backLines...))
	dir := t.TempDir()
	testutil.WriteImage(t, dir, "a.png", testutil.CardImage("A"))
	testutil.WriteImage(t, dir, "b.PNG", testutil.CardImage("B"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	testutil.WriteImage(t, filepath.Join(dir, "nested"), "c.png", testutil.CardImage("C"))

	output := filepath.Join(t.TempDir(), "results.json")
	out, err := execute(t, "batch", "--type", "nicop-back", "--quiet", "--output", output, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 documents: 2 extracted, 0 without text, 0 failed")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var rows []export.Row
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "a.png", rows[0].Name)
	assert.Equal(t, "b.PNG", rows[1].Name)
	assert.Equal(t, "House 12 Street 4 Lahore", rows[0].Fields["present_address"])
}

func TestBatchCommand_Errors(t *testing.T) {
	useFakeEngine(t, nil)

	_, err := execute(t, "batch", "--type", "passport", t.TempDir())
	assert.ErrorContains(t, err, "no images found")

	_, err = execute(t, "batch", "--type", "passport", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImage(t, dir, "z.jpg", testutil.CardImage())
	testutil.WriteImage(t, dir, "a.png", testutil.CardImage())
	testutil.WriteImage(t, filepath.Join(dir, "sub"), "m.bmp", testutil.CardImage())

	items, err := collectImages(dir, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.png", items[0].Name)

	items, err = collectImages(dir, true)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, filepath.Join("sub", "m.bmp"), items[1].Name)

	_, err = collectImages(filepath.Join(dir, "a.png"), false)
	assert.ErrorContains(t, err, "not a directory")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docverify "))

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"go_version"`)
}

func TestConfigCommands(t *testing.T) {
	file := filepath.Join(t.TempDir(), "docverify.yaml")
	out, err := execute(t, "config", "init", file)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+file)
	assert.True(t, testutil.FileExists(file))

	out, err = execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 8080, cfg.Server.Port)

	out, err = execute(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/docverify")
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	err := writeResult(io.Discard, "xml", &extract.NICOPBack{})
	assert.ErrorContains(t, err, "unsupported output format")
}

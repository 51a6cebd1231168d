package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func executeCommand(args ...string) (string, error) {
	return executeCommandWithInput("", args...)
}

func executeCommandWithInput(input string, args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values parsed by one
// test do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// testWorkspace writes a config using the embedded backend with a local model
// directory and a SQLite history file, and returns the config path and the
// workspace directory.
func testWorkspace(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	modelDir := filepath.Join(dir, "model")
	files := map[string]string{
		"tokenizer.json":                 `{"model":{"vocab":{"the":1}}}`,
		"config.json":                    `{}`,
		"onnx/encoder_model.onnx":        "enc",
		"onnx/decoder_model_merged.onnx": "dec",
	}
	for name, content := range files {
		path := filepath.Join(modelDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := "backend:\n" +
		"  kind: embedded\n" +
		"  remote:\n" +
		"    api_key_env: TUTOR_TEST_MISSING_KEY\n" +
		"  embedded:\n" +
		"    model_dir: " + modelDir + "\n" +
		"history:\n" +
		"  dsn: " + filepath.Join(dir, "history.db") + "\n"
	cfgPath := filepath.Join(dir, "tutor.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dir
}

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{
		"analyze", "chat", "serve", "config", "history", "dataset", "templates", "version",
	}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
	for _, flag := range []string{"--config", "--verbose", "--backend"} {
		if !strings.Contains(out, flag) {
			t.Errorf("help output missing flag %q", flag)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	for _, args := range [][]string{
		{"history", "list"}, {"history", "show"}, {"history", "delete"}, {"history", "reset"}, {"history", "stats"},
		{"config", "validate"}, {"config", "show"},
		{"dataset", "generate"}, {"templates", "install"}, {"templates", "list"},
	} {
		out, err := executeCommand(append(args, "--help")...)
		if err != nil {
			t.Errorf("%v --help failed: %v", args, err)
		}
		if out == "" {
			t.Errorf("%v --help produced no output", args)
		}
	}
}

func TestAnalyzeRequiresFile(t *testing.T) {
	if _, err := executeCommand("analyze"); err == nil {
		t.Error("expected error without a file argument")
	}
}

func TestAnalyze_UnsupportedWithEmbeddedBackend(t *testing.T) {
	cfgPath, dir := testWorkspace(t)
	src := writeSourceFile(t, dir, "main.py", "print('hi')\n")

	out, err := executeCommand("analyze", src, "--config", cfgPath, "--format", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	var res analyzeResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if res.Outcome.Kind != "unsupported" || res.Outcome.Extension != ".py" {
		t.Errorf("unexpected outcome: %+v", res.Outcome)
	}
	if res.Analysis == "" {
		t.Error("expected an explanation from the embedded backend")
	}

	out, err = executeCommand("history", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(out, "main.py") || !strings.Contains(out, "unsupported") {
		t.Errorf("history should list the analysis, got:\n%s", out)
	}

	out, err = executeCommand("history", "stats", "--config", cfgPath)
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	if !strings.Contains(out, "Analyses: 1") || !strings.Contains(out, "unsupported") {
		t.Errorf("history stats output:\n%s", out)
	}

	out, err = executeCommand("history", "show", "1", "--config", cfgPath, "--format", "text")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "[1] assistant:") {
		t.Errorf("history show should print the analysis turn, got:\n%s", out)
	}
}

func TestAnalyze_MissingAPIKey(t *testing.T) {
	cfgPath, dir := testWorkspace(t)
	src := writeSourceFile(t, dir, "notes.txt", "hello")

	out, err := executeCommand("analyze", src, "--config", cfgPath, "--backend", "remote", "--format", "text")
	if err == nil {
		t.Fatal("expected error without an API key")
	}
	if !strings.Contains(err.Error(), "No API key configured") {
		t.Errorf("error = %v", err)
	}
	if !strings.Contains(out, "Unsupported file type") {
		t.Errorf("outcome should still be printed, got:\n%s", out)
	}
}

func TestChat(t *testing.T) {
	cfgPath, dir := testWorkspace(t)
	src := writeSourceFile(t, dir, "main.rs", "fn main() {}")

	input := "why?\n/history\n/clear\nand now?\n/quit\n"
	out, err := executeCommandWithInput(input, "chat", src, "--config", cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	for _, want := range []string{"Unsupported file type", "[2] user: why?", "Conversation cleared.", "No analysis yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("chat output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("backend:\n  kind: cloud\ngeneration:\n  temperature: 3\n"), 0o644)

	out, err := executeCommand("config", "validate", "--config", bad)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out, "backend.kind") || !strings.Contains(out, "generation.temperature") {
		t.Errorf("expected both errors listed, got:\n%s", out)
	}

	good := filepath.Join(dir, "good.yaml")
	os.WriteFile(good, []byte("backend:\n  kind: embedded\n"), 0o644)
	out, err = executeCommand("config", "validate", "--config", good)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("got:\n%s", out)
	}
}

func TestConfigShowMasksKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "tutor.yaml")
	os.WriteFile(path, []byte("backend:\n  remote:\n    api_key: sk-secret\n"), 0o644)

	out, err := executeCommand("config", "show", "--config", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Error("config show must not print the API key")
	}
	if !strings.Contains(out, "kind: remote") {
		t.Errorf("expected defaults merged, got:\n%s", out)
	}
}

func TestDatasetGenerate(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "data.json")
	if _, err := executeCommand("dataset", "generate", "-n", "3", "--seed", "1", "-o", outPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var samples []map[string]string
	if err := json.Unmarshal(data, &samples); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(samples) != 3 || samples[0]["input"] == "" {
		t.Errorf("unexpected samples: %v", samples)
	}

	if _, err := executeCommand("dataset", "generate", "-n", "0"); err == nil {
		t.Error("expected error for zero count")
	}
}

func TestTemplatesListAndInstall(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := executeCommand("templates", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "analyze.md") || !strings.Contains(out, "followup.md") {
		t.Errorf("got:\n%s", out)
	}

	out, err = executeCommand("templates", "install")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, filepath.Join(home, ".tutor", "templates", "analyze.md")) {
		t.Errorf("got:\n%s", out)
	}
	out, _ = executeCommand("templates", "install")
	if !strings.Contains(out, "already installed") {
		t.Errorf("second install got:\n%s", out)
	}
}

func TestHistoryReset_RequiresYes(t *testing.T) {
	cfgPath, _ := testWorkspace(t)
	if _, err := executeCommand("history", "reset", "--config", cfgPath); err == nil {
		t.Error("expected refusal without --yes")
	}
	out, err := executeCommand("history", "reset", "--config", cfgPath, "--yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "History reset.") {
		t.Errorf("got:\n%s", out)
	}
}

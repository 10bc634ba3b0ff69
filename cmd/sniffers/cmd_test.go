package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/sniffers/internal/config"
	"github.com/odvcencio/sniffers/internal/runner"
	"github.com/odvcencio/sniffers/pkg/store"
)

func chdirForTest(t *testing.T, dir string) func() {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%s): %v", dir, err)
	}
	return func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore cwd %s: %v", wd, err)
		}
	}
}

func newCmdTestDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return dir
}

func writeCmdFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("sniffers %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// TestHelperProcess stands in for the user command of "sniffers run".
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SNIFFERS_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprintf(os.Stdout, "helper saw:%s\n", os.Getenv(runner.ChangedEnv))
	os.Exit(0)
}

func TestIndexThenSniffCmd(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	a := filepath.Join(dir, "a.txt")
	writeCmdFile(t, a, "v1")

	out := mustRunCLI(t, "index")
	if !strings.Contains(out, "indexed 1 file(s)") {
		t.Fatalf("index output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, store.DefaultFile)); err != nil {
		t.Fatalf("store not created in the working directory: %v", err)
	}

	writeCmdFile(t, a, "v2")
	out = mustRunCLI(t, "sniff")
	if !strings.Contains(out, a+"\n") {
		t.Fatalf("sniff output = %q, want %s", out, a)
	}
	if !strings.Contains(out, "Done sniffing!") {
		t.Fatalf("sniff output = %q, want confirmation line", out)
	}

	out = mustRunCLI(t, "sniff", "--quiet")
	if out != "" {
		t.Fatalf("quiet sniff without changes = %q, want empty", out)
	}
}

func TestSniffCmdWithoutIndexFails(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	_, err := runCLI(t, "sniff", dir)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("sniff error = %v, want store.ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "run index first") {
		t.Fatalf("sniff error %q should tell the user to run index", err)
	}
}

func TestSniffCmdDryRunDoesNotUpdateStore(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeCmdFile(t, filepath.Join(dir, "keep.txt"), "keep")
	writeCmdFile(t, filepath.Join(dir, "gone.txt"), "gone")
	mustRunCLI(t, "index")

	if err := os.Remove(filepath.Join(dir, "gone.txt")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	writeCmdFile(t, filepath.Join(dir, "keep.txt"), "changed")
	writeCmdFile(t, filepath.Join(dir, "new.txt"), "new")

	for i := 0; i < 2; i++ {
		out := mustRunCLI(t, "sniff", "--dry-run")
		for _, want := range []string{
			"  ~ " + filepath.Join(dir, "keep.txt"),
			"  + " + filepath.Join(dir, "new.txt"),
			"  - " + filepath.Join(dir, "gone.txt"),
		} {
			if !strings.Contains(out, want) {
				t.Fatalf("dry-run #%d output = %q, want %q", i+1, out, want)
			}
		}
	}
}

func TestSniffCmdExitCode(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	mustRunCLI(t, "index")
	writeCmdFile(t, filepath.Join(dir, "a.txt"), "a")

	_, err := runCLI(t, "sniff", "--exit-code")
	var exit *exitError
	if !errors.As(err, &exit) || exit.code != 1 {
		t.Fatalf("sniff --exit-code error = %v, want exit status 1", err)
	}

	if _, err := runCLI(t, "sniff", "--exit-code"); err != nil {
		t.Fatalf("sniff --exit-code without changes: %v", err)
	}
}

func TestConfigFileAndFlagOverrides(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeCmdFile(t, filepath.Join(dir, ".sniffers.toml"), "store = \"custom.db\"\nalgorithm = \"blake2b\"\n")
	writeCmdFile(t, filepath.Join(dir, "src", "a.txt"), "a")

	mustRunCLI(t, "index", "src")
	if _, err := os.Stat(filepath.Join(dir, "custom.db")); err != nil {
		t.Fatalf("config store not used: %v", err)
	}

	mustRunCLI(t, "index", "src", "--store", "flag.db", "--compress")
	data, err := os.ReadFile(filepath.Join(dir, "flag.db"))
	if err != nil {
		t.Fatalf("flag store not used: %v", err)
	}
	if !store.IsCompressed(data) {
		t.Fatal("--compress did not produce a zstd store")
	}

	if _, err := runCLI(t, "index", "--algorithm", "md5"); err == nil {
		t.Fatal("expected an unknown algorithm to fail")
	}
}

func TestIgnoreFileIsHonoured(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	writeCmdFile(t, filepath.Join(dir, ".sniffignore"), "*.log\n")
	writeCmdFile(t, filepath.Join(dir, "app.log"), "noise")
	writeCmdFile(t, filepath.Join(dir, "main.go"), "package main")

	out := mustRunCLI(t, "index")
	// main.go and .sniffignore itself.
	if !strings.Contains(out, "indexed 2 file(s)") {
		t.Fatalf("index output = %q", out)
	}
}

func TestMetricsFileWritten(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	prom := filepath.Join(t.TempDir(), "sniffers.prom")
	writeCmdFile(t, filepath.Join(dir, "a.txt"), "a")
	mustRunCLI(t, "index", "--metrics-file", prom)

	data, err := os.ReadFile(prom)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `sniffers_files_scanned_total{op="index"} 1`) {
		t.Fatalf("metrics file:\n%s", data)
	}
}

func TestOutputFilesInsideRootAreNotReported(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"metrics file", []string{"--metrics-file", "sniffers.prom"}},
		{"log file", []string{"--log-file", "sniffers.log", "--log-level", "info"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newCmdTestDir(t)
			restore := chdirForTest(t, dir)
			defer restore()

			writeCmdFile(t, filepath.Join(dir, "a.txt"), "a")
			mustRunCLI(t, append([]string{"index"}, tt.args...)...)
			for i := 0; i < 2; i++ {
				out := mustRunCLI(t, append([]string{"sniff"}, tt.args...)...)
				if out != "Done sniffing!\n" {
					t.Fatalf("sniff #%d output = %q, want no changes", i+1, out)
				}
			}
		})
	}
}

func TestRunCmdOnce(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()
	t.Setenv("SNIFFERS_HELPER_PROCESS", "1")

	mustRunCLI(t, "index")
	a := filepath.Join(dir, "a.txt")
	writeCmdFile(t, a, "a")

	out := mustRunCLI(t, "run", "--once", "--", os.Args[0], "-test.run=TestHelperProcess")
	if !strings.Contains(out, "helper saw:"+a) {
		t.Fatalf("run output = %q, want helper to see %s", out, a)
	}

	out = mustRunCLI(t, "run", "--once", "--", os.Args[0], "-test.run=TestHelperProcess")
	if strings.Contains(out, "helper saw") {
		t.Fatalf("command ran without changes: %q", out)
	}
}

func TestRunCmdRequiresCommand(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	mustRunCLI(t, "index")
	if _, err := runCLI(t, "run", "--once"); err == nil || !strings.Contains(err.Error(), "no command") {
		t.Fatalf("run without command error = %v", err)
	}
}

func TestResolveCommand(t *testing.T) {
	tests := []struct {
		name       string
		argv       []string
		flagValue  string
		flagSet    bool
		configured string
		want       []string
	}{
		{"dash args", []string{"go", "test"}, "", false, "make", []string{"go", "test"}},
		{"single dash string", []string{"go test './...'"}, "", false, "", []string{"go", "test", "./..."}},
		{"flag", nil, "make build", true, "make", []string{"make", "build"}},
		{"config", nil, "", false, "npm run test", []string{"npm", "run", "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveCommand(tt.argv, tt.flagValue, tt.flagSet, tt.configured)
			if err != nil {
				t.Fatalf("resolveCommand: %v", err)
			}
			if strings.Join(got, "\x00") != strings.Join(tt.want, "\x00") {
				t.Fatalf("resolveCommand = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	out := mustRunCLI(t, "version")
	if out != "sniffers "+version+"\n" {
		t.Fatalf("version output = %q", out)
	}
}

func TestInitCmdWritesDefaults(t *testing.T) {
	dir := newCmdTestDir(t)
	restore := chdirForTest(t, dir)
	defer restore()

	out := mustRunCLI(t, "init")
	want := filepath.Join(dir, config.DefaultFile)
	if !strings.Contains(out, want) {
		t.Fatalf("init output = %q, want it to name %s", out, want)
	}

	cfg, err := config.Load(want, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("written config = %+v, want defaults", cfg)
	}

	if _, err := runCLI(t, "init"); err == nil {
		t.Fatal("expected init to refuse an existing config")
	}
	mustRunCLI(t, "init", "--force")
}

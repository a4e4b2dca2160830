package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/deixis/triage/internal/config"
	"github.com/deixis/triage/internal/report"
	"github.com/deixis/triage/internal/versions"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const finding = "[test.c:2]: (style) Variable 'x' is assigned a value that is never used."

// build writes a fake cppcheck script into root/name.
func build(t *testing.T, root, name, script string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(filepath.Join(dir, "cppcheck"), []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
}

// printScript prints out and exits with code.
func printScript(out string, code int) string {
	s := ""
	if out != "" {
		s = "echo '" + out + "'\n"
	}
	return s + "exit " + strconv.Itoa(code)
}

func triage(t *testing.T, cfg *config.Config, req Request) (string, *report.Report) {
	t.Helper()
	var out bytes.Buffer
	e := &Engine{Config: cfg, Out: &out}
	rep, err := e.Triage(context.Background(), req)
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	return out.String(), rep
}

func TestTriage_CompareEnableAllBoundary(t *testing.T) {
	root := t.TempDir()
	// Reports the finding only when --enable=all is passed.
	script := `case " $* " in *" --enable=all "*) echo "` + finding + `" ;; esac`
	build(t, root, "1.38", script)
	build(t, root, "1.39", script)

	got, rep := triage(t, nil, Request{Dir: root, Input: "test.c", Compare: true})

	want := "1.38\n0\n\n1.39\n0\n" + finding + "\n"
	if got != want {
		t.Errorf("transcript =\n%q\nwant\n%q", got, want)
	}
	if rep.Kind != report.Compare || rep.Mode != string(versions.Semver) {
		t.Errorf("report kind/mode = %s/%s", rep.Kind, rep.Mode)
	}
	if ts := rep.Transitions(); len(ts) != 1 || ts[0].Entry != "1.39" {
		t.Errorf("Transitions() = %+v, want 1.39", ts)
	}
}

func TestTriage_DumpMode(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.10", printScript("ten", 1))
	build(t, root, "1.9", printScript("nine", 0))

	got, rep := triage(t, nil, Request{Dir: root, Input: "test.c"})

	want := "1.9\n0\nnine\n\n\n1.10\n1\nten\n\n\n"
	if got != want {
		t.Errorf("transcript =\n%q\nwant\n%q", got, want)
	}
	if rep.Kind != report.Dump || len(rep.Versions) != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestTriage_Compact(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.39", printScript("A", 0))
	build(t, root, "1.40", printScript("A", 0))
	build(t, root, "1.41", printScript("B", 0))
	build(t, root, "1.42", printScript("B", 0))

	full, _ := triage(t, nil, Request{Dir: root, Input: "f.c", Compare: true})
	if want := "1.39\n1.40\n0\nA\n1.41\n1.42\n0\nB\n"; full != want {
		t.Errorf("full transcript =\n%q\nwant\n%q", full, want)
	}

	compact, _ := triage(t, nil, Request{Dir: root, Input: "f.c", Compare: true, Compact: true})
	if want := "1.39\n0\nA\n1.41\n0\nB\n"; compact != want {
		t.Errorf("compact transcript =\n%q\nwant\n%q", compact, want)
	}
}

func TestTriage_ExitCodeChange(t *testing.T) {
	root := t.TempDir()
	build(t, root, "2.0", printScript("same", 0))
	build(t, root, "2.1", printScript("same", 1))

	got, _ := triage(t, nil, Request{Dir: root, Input: "f.c", Compare: true})
	if want := "2.0\n0\nsame\n2.1\n1\nsame\n"; got != want {
		t.Errorf("transcript =\n%q\nwant\n%q", got, want)
	}
}

func TestTriage_MultiDigitExitCode(t *testing.T) {
	root := t.TempDir()
	build(t, root, "2.0", printScript("", 12))

	got, rep := triage(t, nil, Request{Dir: root, Input: "f.c"})
	if rep.Versions[0].ExitCode != 12 {
		t.Errorf("ExitCode = %d, want 12", rep.Versions[0].ExitCode)
	}
	if !strings.HasPrefix(got, "2.0\n12\n") {
		t.Errorf("transcript = %q, want exit code 12", got)
	}
}

func TestTriage_NoiseIgnored(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.48", "echo '[*]: (information) Unmatched suppression: missingInclude' >&2")
	build(t, root, "1.49", "true")

	got, rep := triage(t, nil, Request{Dir: root, Input: "f.c", Compare: true})
	if want := "1.48\n1.49\n0\n\n"; got != want {
		t.Errorf("transcript =\n%q\nwant\n%q", got, want)
	}
	if len(rep.Transitions()) != 0 {
		t.Errorf("Transitions() = %+v, want none", rep.Transitions())
	}
}

func TestTriage_Diff(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.60", printScript("old", 0))
	build(t, root, "1.61", printScript("new", 0))

	got, _ := triage(t, nil, Request{Dir: root, Input: "f.c", Compare: true, Diff: true})
	for _, want := range []string{"--- 1.60", "+++ 1.61", "-old", "+new"} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript missing %q:\n%s", want, got)
		}
	}
}

func TestTriage_Timeout(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.50", "exec sleep 10")
	build(t, root, "1.51", printScript("fast", 0))

	start := time.Now()
	got, rep := triage(t, nil, Request{Dir: root, Input: "f.c", Timeout: 200 * time.Millisecond})
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Errorf("Triage took %s, want the slow build killed", elapsed)
	}
	if rep.Versions[0].Output != "timeout" || !rep.Versions[0].TimedOut {
		t.Errorf("first result = %+v, want timeout sentinel", rep.Versions[0])
	}
	if !strings.Contains(got, "1.51\n0\nfast") {
		t.Errorf("transcript = %q, want the next build to run", got)
	}
}

func TestTriage_GatedArgs(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.60", `echo "$@"`)
	build(t, root, "1.61", `echo "$@"`)

	_, rep := triage(t, nil, Request{Dir: root, Input: "f.c", CheckLibrary: true})
	if strings.Contains(rep.Versions[0].Output, "--check-library") {
		t.Errorf("1.60 output = %q, want no --check-library", rep.Versions[0].Output)
	}
	if !strings.Contains(rep.Versions[1].Output, "--check-library") {
		t.Errorf("1.61 output = %q, want --check-library", rep.Versions[1].Output)
	}
}

func TestTriage_WorkingDirectoryIsBuildFolder(t *testing.T) {
	root := t.TempDir()
	build(t, root, "2.0", "pwd")

	_, rep := triage(t, nil, Request{Dir: root, Input: "f.c"})
	if !strings.Contains(rep.Versions[0].Output, filepath.Join(filepath.Base(root), "2.0")) {
		t.Errorf("output = %q, want to run inside the build folder", rep.Versions[0].Output)
	}
}

func TestTriage_MissingExecutable(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "1.0"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, rep := triage(t, nil, Request{Dir: root, Input: "f.c"})
	if rep.Versions[0].ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for a build that cannot start", rep.Versions[0].ExitCode)
	}
}

// fakeGit writes a git stand-in that prints the hashes it is given in
// reverse lexical order, ignoring the subcommand and any flags.
func fakeGit(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "git")
	script := `#!/bin/sh
for a in "$@"; do
	case "$a" in
	rev-list|-*) ;;
	*) echo "$a" ;;
	esac
done | sort -r
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTriage_CommitHashes(t *testing.T) {
	root := t.TempDir()
	version := func(v, out string) string {
		return `case "$1" in --version) echo "Cppcheck ` + v + ` dev"; exit 0 ;; esac
echo '` + out + `'`
	}
	build(t, root, "aaa1111", version("1.39", "late"))
	build(t, root, "bbb2222", version("1.38", "early"))
	build(t, root, "cppcheck", "exit 99")

	cfg := &config.Config{Git: fakeGit(t)}
	got, rep := triage(t, cfg, Request{Dir: root, Input: "f.c", Repo: t.TempDir(), Compare: true})

	want := "bbb2222 (1.38)\n0\nearly\naaa1111 (1.39)\n0\nlate\n"
	if got != want {
		t.Errorf("transcript =\n%q\nwant\n%q", got, want)
	}
	if rep.Mode != string(versions.Hash) || len(rep.Versions) != 2 {
		t.Fatalf("report = %+v, want two hash builds", rep)
	}
	for _, v := range rep.Versions {
		if v.Entry == "cppcheck" {
			t.Errorf("report includes the excluded cppcheck folder: %+v", v)
		}
	}
	if rep.Versions[0].Version != "1.38" || rep.Versions[1].Version != "1.39" {
		t.Errorf("versions = %q, %q, want 1.38, 1.39 from --version", rep.Versions[0].Version, rep.Versions[1].Version)
	}
}

func TestTriage_RunIDs(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.0", "true")
	build(t, root, "1.1", "true")

	_, rep := triage(t, nil, Request{Dir: root, Input: "f.c"})
	a, b := rep.Versions[0].RunID, rep.Versions[1].RunID
	if a == "" || b == "" || a == b {
		t.Errorf("run ids = %q, %q, want two distinct ids", a, b)
	}
	if a == rep.ID || b == rep.ID {
		t.Errorf("run id reuses report id %q", rep.ID)
	}
}

func TestTriage_LogsEnabledFeatures(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.38", "true")
	build(t, root, "1.61", "true")

	core, logs := observer.New(zap.DebugLevel)
	e := &Engine{Logger: zap.New(core)}
	if _, err := e.Triage(context.Background(), Request{Dir: root, Input: "f.c", Compare: true, CheckLibrary: true}); err != nil {
		t.Fatalf("Triage: %v", err)
	}

	running := logs.FilterMessage("running").All()
	if len(running) != 2 {
		t.Fatalf("got %d running entries, want 2", len(running))
	}
	want := map[string]string{
		"1.38": "[quiet]",
		"1.61": "[quiet check-library enable-all inline-suppr suppressions inconclusive]",
	}
	for _, entry := range running {
		fields := entry.ContextMap()
		label, _ := fields["version"].(string)
		got := fmt.Sprint(fields["features"])
		if got != want[label] {
			t.Errorf("features for %s = %s, want %s", label, got, want[label])
		}
	}
}

func TestTriage_Errors(t *testing.T) {
	empty := t.TempDir()
	hashes := t.TempDir()
	build(t, hashes, "abc1234", "true")

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"compact without compare", Request{Dir: hashes, Compact: true}, ErrCompactRequiresCompare},
		{"negative timeout", Request{Dir: hashes, Timeout: -time.Second}, ErrInvalidTimeout},
		{"no versions", Request{Dir: empty}, versions.ErrNoVersions},
		{"repo required", Request{Dir: hashes}, versions.ErrRepoRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{}
			_, err := e.Triage(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTriage_InvalidThresholds(t *testing.T) {
	root := t.TempDir()
	build(t, root, "1.0", "true")
	e := &Engine{Config: &config.Config{Thresholds: map[string]string{"bogus": "1.0"}}}
	if _, err := e.Triage(context.Background(), Request{Dir: root, Input: "f.c"}); err == nil {
		t.Fatal("expected config error")
	}
}

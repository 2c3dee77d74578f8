package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/testboil"
)

type testConf struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Extra string `json:"extra"`
}

func TestLoadConfigFromFile_CreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".agentloop")
	dflt := testConf{Name: "agent", Count: 3}
	got, err := LoadConfigFromFile(dir, "conf.json", &dflt)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	testboil.FailTestIfDiff(t, got, dflt)
	if _, err := os.Stat(filepath.Join(dir, ConversationsDir)); err != nil {
		t.Fatalf("expected conversations dir to exist: %v", err)
	}
}

func TestLoadConfigFromFile_BackfillsNewFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.json")
	if err := os.WriteFile(path, []byte(`{"name": "custom"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	dflt := testConf{Name: "agent", Count: 3, Extra: "new"}
	got, err := LoadConfigFromFile(dir, "conf.json", &dflt)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	testboil.FailTestIfDiff(t, got, testConf{Name: "custom", Count: 3, Extra: "new"})

	var onDisk testConf
	if err := ReadAndUnmarshal(path, &onDisk); err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, onDisk, got)
}

func TestLoadConfigFromFile_QuietUnlessDebug(t *testing.T) {
	t.Setenv("DEBUG", "")
	dir := filepath.Join(t.TempDir(), ".agentloop")
	dflt := testConf{Name: "agent", Count: 3}
	got := testboil.CaptureStdout(t, func(t *testing.T) {
		// First load creates the dir, second one back-fills a new field
		if _, err := LoadConfigFromFile(dir, "conf.json", &dflt); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		dflt.Extra = "new"
		if _, err := LoadConfigFromFile(dir, "conf.json", &dflt); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	})
	testboil.FailTestIfDiff(t, got, "")
}

func TestLoadConfigFromFile_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "conf.json"), []byte(`{`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFromFile(dir, "conf.json", &testConf{}); err == nil {
		t.Fatal("expected error on broken config")
	}
}

func TestGetConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("AGENTLOOP_CONFIG_HOME", "/tmp/somewhere")
	got, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, got, "/tmp/somewhere")
}

type codeErr struct{ code int }

func (c codeErr) Error() string { return fmt.Sprintf("code %v", c.code) }

func TestFormatError(t *testing.T) {
	testboil.FailTestIfDiff(t, FormatError(nil), "")
	testboil.FailTestIfDiff(t, FormatError(errors.New("plain")), "plain")

	wrapped := fmt.Errorf("failed to stream: %w", fmt.Errorf("failed to read: %w", codeErr{code: 7}))
	got := FormatError(wrapped)
	testboil.FailTestIfDiff(t, got, "failed to stream: failed to read: code 7\nroot cause (utils.codeErr): code 7")

	joined := errors.Join(errors.New("a"), errors.New("b"))
	testboil.FailTestIfDiff(t, FormatError(joined), "a\nb\n- a\n- b")
}

func TestTruncMiddle(t *testing.T) {
	testboil.FailTestIfDiff(t, TruncMiddle("short", 10), "short")
	testboil.FailTestIfDiff(t, TruncMiddle("line\nbreak", 20), "line\\nbreak")
	testboil.FailTestIfDiff(t, TruncMiddle("0123456789abcdef", 11), "012 ... def")
	testboil.FailTestIfDiff(t, TruncMiddle("0123456789", 3), "012")
	testboil.FailTestIfDiff(t, TruncMiddle("0123456789", 0), "")
}

func TestPrinter_RawOnlyPrintsResult(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true, DefaultTheme())
	p.Heading("agent-0", "generating")
	p.Chunk("partial")
	p.ToolUse("agent-0", "payment", map[string]any{"amount": 10})
	p.Warn("careful")
	p.Result("agent-0", "done")
	testboil.FailTestIfDiff(t, buf.String(), "done\n")
}

func TestPrinter_PlainWhenNotTerminal(t *testing.T) {
	t.Setenv("COLUMNS", "200")
	var buf bytes.Buffer
	p := NewPrinter(&buf, false, DefaultTheme())
	p.Heading("agent-0", "generating")
	p.Chunk("hel")
	p.Chunk("lo")
	p.EndStream()
	p.ToolUse("agent-0", "payment", map[string]any{"currency": "usd", "amount": 10})
	got := buf.String()
	testboil.AssertStringContains(t, got, "agent-0: generating\n")
	testboil.AssertStringContains(t, got, "hello\n")
	testboil.AssertStringContains(t, got, "using tool 'payment' [ 'amount': '10', 'currency': 'usd' ]")
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("expected no ansi escapes when writing to a buffer, got: %q", got)
	}
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(strings.NewReader("  hello \nquit\n"))
	ctx := context.Background()
	got, err := lr.ReadUserInput(ctx)
	if err != nil {
		t.Fatal(err)
	}
	testboil.FailTestIfDiff(t, got, "hello")
	if _, err := lr.ReadUserInput(ctx); !errors.Is(err, ErrUserInitiatedExit) {
		t.Fatalf("expected quit to exit, got: %v", err)
	}
	for _i := 0; _i < 2; _i++ {
		if _, err := lr.ReadUserInput(ctx); !errors.Is(err, ErrUserInitiatedExit) {
			t.Fatalf("expected end of input to exit, got: %v", err)
		}
	}
}

func TestLineReader_ReturnsOnContextCancel(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	defer r.Close()
	lr := NewLineReader(r)
	testboil.ReturnsOnContextCancel(t, func(ctx context.Context) {
		lr.ReadUserInput(ctx)
	}, time.Second)
}

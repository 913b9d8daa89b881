package trust

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	old := Level()
	t.Cleanup(func() {
		SetOutput(prev)
		SetLevel(old)
	})
	return &buf
}

func TestMaskFilters(t *testing.T) {
	buf := capture(t)
	SetLevel(ErrorMask | WarnMask)
	Debugf("hidden %d", 1)
	Infof("hidden too")
	Warnf("shown %d", 2)
	Errorf("also shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("masked levels leaked: %q", out)
	}
	if !strings.Contains(out, " WARN:shown 2\n") {
		t.Errorf("missing warning in %q", out)
	}
	if !strings.Contains(out, "ERROR:also shown\n") {
		t.Errorf("missing error in %q", out)
	}
}

func TestStatsCategory(t *testing.T) {
	buf := capture(t)
	SetLevel(StatsMask)
	Statsf("hart 2", "cycles=%d", 77)
	if got := buf.String(); got != "STATS[hart 2]:cycles=77\n" {
		t.Errorf("unexpected stats line %q", got)
	}
}

func TestFatalUsesExitHook(t *testing.T) {
	buf := capture(t)
	SetLevel(Nothing)
	code := -1
	SetExitHook(func(c int) { code = c })
	defer SetExitHook(nil)
	Fatalf(3, "going down")
	if code != 3 {
		t.Errorf("exit hook got %d, expected 3", code)
	}
	if !strings.HasPrefix(buf.String(), "FATAL:going down") {
		t.Errorf("fatal must not be maskable, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	m, ok := ParseLevel("Warn")
	if !ok || m != ErrorMask|WarnMask|StatsMask {
		t.Errorf("bad parse of warn: %x %v", m, ok)
	}
	if _, ok := ParseLevel("chatty"); ok {
		t.Errorf("unknown level accepted")
	}
	SetLevel(m)
	defer SetLevel(ErrorMask | WarnMask | InfoMask | StatsMask)
	if s := LevelToString(); s != "error warn stats" {
		t.Errorf("LevelToString gave %q", s)
	}
}

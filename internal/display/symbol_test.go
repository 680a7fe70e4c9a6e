package display

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func newTestResolver() (*Resolver, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewResolver(log.New(&buf, "", 0)), &buf
}

func TestResolveCodes(t *testing.T) {
	r, _ := newTestResolver()

	tests := []struct {
		code string
		want string
	}{
		{"800", ClearSymbol},
		{"80", CloudsSymbol},
		{"801", CloudsSymbol},
		{"211", "a"},
		{"301", "n"},
		{"502", "b"},
		{"611", "d"},
		{"741", "m"},
		{"903", "k"},
		{"904", "f"},
		{"905", "e"},
		{"906", "i"},
		{" 500 ", "b"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := r.Resolve(tt.code, nil); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestResolveFallbackLogsWarning(t *testing.T) {
	for _, code := range []string{"999", "000", "", "abc", "-5"} {
		t.Run(code, func(t *testing.T) {
			r, buf := newTestResolver()
			if got := r.Resolve(code, nil); got != NotAvailableSymbol {
				t.Errorf("Resolve(%q) = %q, want %q", code, got, NotAvailableSymbol)
			}
			if !strings.Contains(buf.String(), "WARN:") {
				t.Errorf("expected a warning for %q, log was %q", code, buf.String())
			}
		})
	}
}

func TestResolveNight(t *testing.T) {
	r, _ := newTestResolver()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		utcHr  int
		offset int
		want   string
	}{
		{"noon utc", 12, 0, ClearSymbol},
		{"six is night", 6, 0, NightSymbol},
		{"seven is day", 7, 0, ClearSymbol},
		{"nineteen is day", 19, 0, ClearSymbol},
		{"twenty is night", 20, 0, NightSymbol},
		{"midnight", 0, 0, NightSymbol},
		{"offset pushes into night", 18, 3, NightSymbol},
		{"offset wraps past midnight", 23, 9, ClearSymbol},
		{"negative offset", 3, -5, NightSymbol},
		{"negative offset into day", 14, -5, ClearSymbol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := &Moment{Unix: day.Add(time.Duration(tt.utcHr) * time.Hour).Unix(), OffsetHours: tt.offset}
			if got := r.Resolve("800", at); got != tt.want {
				t.Errorf("Resolve at %d+%d = %q, want %q", tt.utcHr, tt.offset, got, tt.want)
			}
		})
	}
}

func TestNightIgnoresUnknownCode(t *testing.T) {
	r, buf := newTestResolver()
	at := &Moment{Unix: time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC).Unix()}
	if got := r.Resolve("999", at); got != NightSymbol {
		t.Errorf("got %q, want night symbol", got)
	}
	if buf.Len() != 0 {
		t.Errorf("night resolution should not warn, log was %q", buf.String())
	}
}

func TestResolveCode(t *testing.T) {
	r, _ := newTestResolver()
	if got := r.ResolveCode(800, nil); got != ClearSymbol {
		t.Errorf("ResolveCode(800) = %q", got)
	}
}

func TestLocalHour(t *testing.T) {
	unix := time.Date(2026, 1, 1, 2, 30, 0, 0, time.UTC).Unix()
	if h := LocalHour(unix, -3); h != 23 {
		t.Errorf("LocalHour = %d, want 23", h)
	}
	if h := LocalHour(unix, 1); h != 3 {
		t.Errorf("LocalHour = %d, want 3", h)
	}
}

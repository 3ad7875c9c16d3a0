package layout

import (
	"strings"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello world"},
		{`a/b\c:d*e?f"g<h>i|j`, "a_b_c_d_e_f_g_h_i_j"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMessageDirNameDeterministic(t *testing.T) {
	fixedNow := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	now := func() time.Time { return fixedNow }
	sentDate := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	a := MessageDirName(sentDate, "Hello There", now)
	b := MessageDirName(sentDate, "Hello There", now)
	if a != b {
		t.Errorf("MessageDirName not deterministic: %q != %q", a, b)
	}
	if want := "2025-06-15_09-30_Hello There"; a != want {
		t.Errorf("MessageDirName() = %q, want %q", a, want)
	}
}

func TestMessageDirNameNoSentDateUsesNow(t *testing.T) {
	fixedNow := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	now := func() time.Time { return fixedNow }

	got := MessageDirName(time.Time{}, "Subject", now)
	if want := "2026-01-02_03-04_Subject"; got != want {
		t.Errorf("MessageDirName() = %q, want %q", got, want)
	}
}

func TestMessageDirNameNoSubject(t *testing.T) {
	fixedNow := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := func() time.Time { return fixedNow }

	got := MessageDirName(fixedNow, "", now)
	if !strings.Contains(got, "NoSubject_") {
		t.Errorf("MessageDirName() = %q, want it to contain NoSubject_", got)
	}
}

func TestMessageDirNameTruncatesSubject(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	longSubject := strings.Repeat("a", 200)

	got := MessageDirName(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), longSubject, now)
	parts := strings.SplitN(got, "_", 3)
	if len(parts[2]) != maxSubjectLen {
		t.Errorf("subject part length = %d, want %d", len(parts[2]), maxSubjectLen)
	}
}

func TestGeneratedMessageID(t *testing.T) {
	got := GeneratedMessageID(1700000000000, 3)
	want := "<1700000000000.3@mailcache.generated>"
	if got != want {
		t.Errorf("GeneratedMessageID() = %q, want %q", got, want)
	}
}

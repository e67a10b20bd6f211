package conversation

import (
	"strings"
	"testing"
	"testing/quick"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**Hello** #World#", "Hello World"},
		{"The sky is *blue*.\n", "The sky is blue."},
		{"## Heading\n\n* one\n* two", "Heading\n\n one\n two"},
		{"   ", ""},
		{"***###", ""},
		{"", ""},
		{"plain answer", "plain answer"},
		{"  # leading and trailing *  ", "leading and trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	f := func(s string) bool {
		once := Sanitize(s)
		return Sanitize(once) == once
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestSanitizeRemovesMarkup(t *testing.T) {
	f := func(s string) bool {
		out := Sanitize(s)
		return !strings.ContainsAny(out, "*#") && out == strings.TrimSpace(out)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

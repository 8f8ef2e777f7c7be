package security

import "testing"

func TestTextSanitizer_Sanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text unchanged", "Go Concurrency Patterns", "Go Concurrency Patterns"},
		{"ampersand kept as text", "Tips & Tricks", "Tips & Tricks"},
		{"quotes kept as text", `Rob's "talk"`, `Rob's "talk"`},
		{"bold tag stripped", "<b>Bold</b> title", "Bold title"},
		{"script removed with content", "<script>alert(1)</script>Safe", "Safe"},
		{"event handler removed", `<img src=x onerror="alert(1)">Photo`, "Photo"},
		{"surrounding whitespace trimmed", "  padded  ", "padded"},
		{"link keeps text", `<a href="https://example.com">Example</a>`, "Example"},
	}

	s := NewTextSanitizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

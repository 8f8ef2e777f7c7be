package link

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://example.com", "https://example.com", false},
		{"  chatgpt.com ", "https://chatgpt.com", false},
		{"HTTP://Example.com/a?b=1", "http://Example.com/a?b=1", false},
		{"sub.example.co.jp:8443/path", "https://sub.example.co.jp:8443/path", false},
		{"", "", true},
		{"ftp://example.com", "", true},
		{"javascript:alert(1)", "", true},
		{"localhost:8080", "", true},
		{"http://127.0.0.1", "", true},
		{"https://-bad.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

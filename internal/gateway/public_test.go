package gateway

import "testing"

func TestPublicMatcher(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"no patterns", nil, "/", false},
		{"exact prefix", []string{"/pub"}, "/pub", true},
		{"prefix subtree", []string{"/pub"}, "/pub/deep/page.html", true},
		{"prefix is not substring", []string{"/pub"}, "/public", false},
		{"missing leading slash normalized", []string{"pub"}, "/pub/x", true},
		{"trailing slash normalized", []string{"/pub/"}, "/pub/x", true},
		{"root makes everything public", []string{"/"}, "/anything/at/all", true},
		{"glob star", []string{"/assets/*.css"}, "/assets/site.css", true},
		{"glob star wrong extension", []string{"/assets/*.css"}, "/assets/app.js", false},
		{"glob does not cross slashes", []string{"/assets/*.css"}, "/assets/v2/site.css", false},
		{"glob question mark", []string{"/v?"}, "/v1", true},
		{"dot segments cleaned", []string{"/pub"}, "/pub/../private", false},
		{"double slash cleaned", []string{"/pub"}, "//pub//x", true},
		{"multiple patterns", []string{"/favicon.ico", "/assets"}, "/assets/logo.png", true},
		{"empty pattern ignored", []string{""}, "/", false},
		{"no match", []string{"/pub", "/assets/*.css"}, "/private", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := compilePublic(tt.patterns)
			if got := m.matches(tt.path); got != tt.want {
				t.Errorf("matches(%q) with %v = %t, want %t", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

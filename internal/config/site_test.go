package config

import "testing"

func TestValidateAlias(t *testing.T) {
	tests := []struct {
		alias   string
		wantErr bool
	}{
		{"default", false},
		{"prod-portal", false},
		{"a1", false},
		{"x", true},
		{"1site", true},
		{"has space", true},
		{"under_score", true},
		{"abcdefghijklmnopqrstu", true},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			if err := ValidateAlias(tt.alias); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAlias(%q) error = %v, wantErr %v", tt.alias, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"gis.example.com/portal", "https://gis.example.com/portal"},
		{"http://localhost:6080/arcgis/", "http://localhost:6080/arcgis"},
		{" https://gis.example.com/server// ", "https://gis.example.com/server"},
	}

	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

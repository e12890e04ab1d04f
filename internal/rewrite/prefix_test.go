package rewrite

import "testing"

func TestPrefix_Apply(t *testing.T) {
	p := Prefix{From: "/api", To: "/AdministradorCargaArchivos"}

	tests := []struct {
		name   string
		path   string
		want   string
		wantOK bool
	}{
		{"nested path", "/api/foo", "/AdministradorCargaArchivos/foo", true},
		{"deep path", "/api/a/b/c.zip", "/AdministradorCargaArchivos/a/b/c.zip", true},
		{"trailing slash kept", "/api/foo/", "/AdministradorCargaArchivos/foo/", true},
		{"bare prefix", "/api", "/AdministradorCargaArchivos", true},
		{"prefix with slash", "/api/", "/AdministradorCargaArchivos/", true},
		{"inner occurrence untouched", "/api/v1/api/x", "/AdministradorCargaArchivos/v1/api/x", true},
		{"escaped segment untouched", "/api/a%20b", "/AdministradorCargaArchivos/a%20b", true},
		{"no segment boundary", "/apix", "", false},
		{"other prefix", "/other/api", "", false},
		{"root", "/", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Apply(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Apply(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPrefix_Apply_TrailingSlashInConfig(t *testing.T) {
	p := Prefix{From: "/api/", To: "/svc/"}

	got, ok := p.Apply("/api/foo")
	if !ok {
		t.Fatal("Apply() ok = false, want true")
	}
	if got != "/svc/foo" {
		t.Errorf("Apply() = %q, want %q", got, "/svc/foo")
	}
}

func TestPrefix_Apply_EmptyTarget(t *testing.T) {
	p := Prefix{From: "/api", To: ""}

	tests := []struct {
		path string
		want string
	}{
		{"/api/foo", "/foo"},
		{"/api", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := p.Apply(tt.path)
			if !ok || got != tt.want {
				t.Errorf("Apply(%q) = %q, %v; want %q, true", tt.path, got, ok, tt.want)
			}
		})
	}
}

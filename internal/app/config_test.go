package app

import "testing"

func TestCheckAuthSecret(t *testing.T) {
	cases := []struct {
		name    string
		mode    string
		secret  string
		wantErr bool
	}{
		{name: "production without secret refused", mode: "production", secret: "", wantErr: true},
		{name: "production with secret", mode: "production", secret: "s3cret", wantErr: false},
		{name: "development without secret tolerated", mode: "development", secret: "", wantErr: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("APP_MODE", tc.mode)
			t.Setenv("JWT_SECRET", tc.secret)
			cfg := LoadConfig()
			err := cfg.CheckAuthSecret()
			if tc.wantErr && err == nil {
				t.Fatal("want error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("want nil, got %v", err)
			}
		})
	}
}

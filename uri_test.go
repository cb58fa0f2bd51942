package rtmp

import (
	"testing"

	"github.com/lumenstream/rtmppub/config"
)

func TestParseURI(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		name      string
		uri       string
		wantHost  string
		wantPort  string
		wantApp   string
		wantKey   string
		wantErr   bool
		wantSecure bool
	}{
		{"plain", "rtmp://example.com/live/streamkey", "example.com", "1935", "live", "streamkey", false, false},
		{"explicit port", "rtmps://example.com:443/live/streamkey", "example.com", "443", "live", "streamkey", false, true},
		{"nested app", "rtmp://example.com/live/sub/streamkey", "example.com", "1935", "live/sub", "streamkey", false, false},
		{"missing scheme", "example.com/live/streamkey", "", "", "", "", true, false},
		{"missing stream key", "rtmp://example.com/live", "", "", "", "", true, false},
		{"empty", "", "", "", "", "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.uri, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q, got nil", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q) returned error: %v", tt.uri, err)
			}
			if got.Host != tt.wantHost {
				t.Errorf("got host %q, want %q", got.Host, tt.wantHost)
			}
			if got.Port != tt.wantPort {
				t.Errorf("got port %q, want %q", got.Port, tt.wantPort)
			}
			if got.App != tt.wantApp {
				t.Errorf("got app %q, want %q", got.App, tt.wantApp)
			}
			if got.StreamKey != tt.wantKey {
				t.Errorf("got stream key %q, want %q", got.StreamKey, tt.wantKey)
			}
			if got.Secure != tt.wantSecure {
				t.Errorf("got secure %v, want %v", got.Secure, tt.wantSecure)
			}
		})
	}
}

func TestAnonymize(t *testing.T) {
	cfg := config.DefaultConfig()
	u, err := ParseURI("rtmp://example.com/live/abcdefgh", cfg)
	if err != nil {
		t.Fatalf("ParseURI returned error: %v", err)
	}
	got := u.Anonymize()
	want := "rtmp://example.com:1935/****/ab****gh"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAnonymizeStrShortString(t *testing.T) {
	got := anonymizeStr("abcd")
	if got != "****" {
		t.Errorf("got %q, want %q", got, "****")
	}
}

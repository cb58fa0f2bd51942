package chunk

import "testing"

func TestSetChunkSizeRoundTrip(t *testing.T) {
	got := DecodeSetChunkSize(EncodeSetChunkSize(4096))
	if got != 4096 {
		t.Errorf("got %d, want 4096", got)
	}
}

func TestSetPeerBandwidthRoundTrip(t *testing.T) {
	size, limit := DecodeSetPeerBandwidth(EncodeSetPeerBandwidth(2500000, LimitSoft))
	if size != 2500000 || limit != LimitSoft {
		t.Errorf("got size=%d limit=%d, want size=2500000 limit=%d", size, limit, LimitSoft)
	}
}

func TestUserControlRoundTrip(t *testing.T) {
	event, data := DecodeUserControl(EncodeUserControl(EventPingRequest, []byte{0, 0, 0, 7}))
	if event != EventPingRequest {
		t.Errorf("got event %d, want %d", event, EventPingRequest)
	}
	if len(data) != 4 || data[3] != 7 {
		t.Errorf("got data %v, want trailing 7", data)
	}
}

func TestNextPeerBandwidthLimit(t *testing.T) {
	tests := []struct {
		name    string
		current uint8
		next    uint8
		want    uint8
	}{
		{"dynamic after hard stays hard", LimitHard, LimitDynamic, LimitHard},
		{"dynamic after soft becomes dynamic", LimitSoft, LimitDynamic, LimitDynamic},
		{"hard always wins outright", LimitSoft, LimitHard, LimitHard},
		{"soft overrides unknown", LimitUnknown, LimitSoft, LimitSoft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextPeerBandwidthLimit(tt.current, tt.next)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

package rtmp

import "testing"

func TestReasonFromStatus(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        DisconnectionReason
	}{
		{"rejected app", "NetConnection.Connect.Rejected", "", ReasonRefused},
		{"invalid app", "NetConnection.Connect.InvalidApp", "", ReasonRefused},
		{"bad name", "NetStream.Publish.BadName", "", ReasonAlreadyInUse},
		{"description says in use", "NetStream.Publish.BadName", "stream already in use", ReasonAlreadyInUse},
		{"description says refused", "Some.Other.Code", "connection refused by policy", ReasonRefused},
		{"unrecognized", "Some.Other.Code", "", ReasonUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reasonFromStatus(tt.code, tt.description)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDisconnectionReasonString(t *testing.T) {
	if ReasonTimeout.String() != "timeout" {
		t.Errorf("got %q, want %q", ReasonTimeout.String(), "timeout")
	}
	if DisconnectionReason(200).String() != "unknown" {
		t.Errorf("expected an out-of-range reason to stringify as unknown")
	}
}

func TestReasonForRecognizesStatusError(t *testing.T) {
	err := newStatusError("NetConnection.Connect.Rejected", "", ErrProtocol)
	if got := reasonFor(err); got != ReasonRefused {
		t.Errorf("got %v, want %v", got, ReasonRefused)
	}
}

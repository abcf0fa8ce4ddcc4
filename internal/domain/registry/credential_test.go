package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestGenerateTokenFormat(t *testing.T) {
	for _, tc := range []struct {
		appID  uint64
		userID int64
	}{
		{0, 0},
		{1000, 42},
		{^uint64(0), 1<<63 - 1},
	} {
		token := GenerateToken(tc.appID, tc.userID)

		prefix, suffix, found := strings.Cut(token, ":")
		if !found {
			t.Fatalf("token %q has no separator", token)
		}
		if prefix != fmt.Sprintf("%d", tc.appID) {
			t.Errorf("token prefix = %q, want %d", prefix, tc.appID)
		}
		raw, err := hex.DecodeString(suffix)
		if err != nil {
			t.Fatalf("token suffix %q is not hex: %v", suffix, err)
		}
		if len(raw) != digestSize {
			t.Errorf("digest length = %d, want %d", len(raw), digestSize)
		}
	}
}

func TestGeneratedTokenParsesBack(t *testing.T) {
	token := GenerateToken(1000, 42)
	appID, err := ParseCredential(token)
	if err != nil {
		t.Fatalf("ParseCredential error: %v", err)
	}
	if appID != 1000 {
		t.Errorf("parsed app id = %d, want 1000", appID)
	}
}

func TestParseCredential(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantID  uint64
		wantErr error
	}{
		{"valid", "1000:abcdef", 1000, nil},
		{"valid with extra colons", "7:ab:cd", 7, nil},
		{"no separator", "1000abcdef", 0, ErrMissingSeparator},
		{"empty string", "", 0, ErrMissingSeparator},
		{"non numeric id", "abc:def", 0, ErrMalformedAppID},
		{"empty id", ":abcdef", 0, ErrMalformedAppID},
		{"negative id", "-5:abcdef", 0, ErrMalformedAppID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseCredential(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

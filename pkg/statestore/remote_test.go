package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRemoteConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RemoteConfig
		wantErr bool
	}{
		{
			"valid with password",
			RemoteConfig{Host: "state.internal", Port: 22, User: "reset", Password: "secret"},
			false,
		},
		{
			"valid with key",
			RemoteConfig{Host: "state.internal", Port: 22, User: "reset", PrivateKeyPath: "/keys/id_ed25519"},
			false,
		},
		{
			"missing host",
			RemoteConfig{Port: 22, User: "reset", Password: "secret"},
			true,
		},
		{
			"missing user",
			RemoteConfig{Host: "state.internal", Port: 22, Password: "secret"},
			true,
		},
		{
			"bad port",
			RemoteConfig{Host: "state.internal", Port: 0, User: "reset", Password: "secret"},
			true,
		},
		{
			"port out of range",
			RemoteConfig{Host: "state.internal", Port: 70000, User: "reset", Password: "secret"},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestRemoteConfigAddress(t *testing.T) {
	c := RemoteConfig{Host: "state.internal", Port: 2222}
	if got := c.Address(); got != "state.internal:2222" {
		t.Errorf("Address() = %q", got)
	}
}

func TestDefaultRemoteConfig(t *testing.T) {
	c := DefaultRemoteConfig("state.internal", "reset")
	if c.Port != 22 {
		t.Errorf("port = %d, want 22", c.Port)
	}
	if c.ConnectionTimeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.ConnectionTimeout)
	}
}

func TestRemoteStoreRejectsInvalidConfig(t *testing.T) {
	_, err := NewRemoteStore(&RemoteConfig{}, zerolog.Nop())
	if err == nil {
		t.Fatal("empty config accepted")
	}
}

func TestRemoteRemovePathGuards(t *testing.T) {
	store, err := NewRemoteStore(&RemoteConfig{
		Host:     "state.internal",
		Port:     22,
		User:     "reset",
		Password: "secret",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRemoteStore failed: %v", err)
	}

	// Guards fire before any connection attempt.
	if err := store.RemovePath(context.Background(), ""); err == nil {
		t.Error("empty path accepted")
	}
	if err := store.RemovePath(context.Background(), "/"); err == nil {
		t.Error("remote filesystem root accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.RemovePath(ctx, "/srv/data"); err == nil {
		t.Error("cancelled context accepted")
	}
}

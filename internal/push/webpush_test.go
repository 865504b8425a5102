package push

import (
	"context"
	"errors"
	"testing"

	"likhtar/internal/config"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

func TestSenderDisabledWithoutKeys(t *testing.T) {
	t.Parallel()

	s := NewSender(config.PushConfig{}, logx.Nop())
	if s.Enabled() {
		t.Fatal("sender enabled without VAPID keys")
	}
	res, err := s.Send(context.Background(), registry.PushSub{Endpoint: "ep"}, []byte("{}"))
	if res != ResultError || !errors.Is(err, ErrDisabled) {
		t.Fatalf("Send = %v, %v; want ResultError, ErrDisabled", res, err)
	}

	var nilSender *Sender
	if nilSender.Enabled() {
		t.Fatal("nil sender reported enabled")
	}
}

func TestSenderDefaults(t *testing.T) {
	t.Parallel()

	s := NewSender(config.PushConfig{
		VAPIDPublicKey:  " pk ",
		VAPIDPrivateKey: "sk",
	}, logx.Nop())
	if !s.Enabled() {
		t.Fatal("sender disabled with both keys set")
	}
	if s.PublicKey() != "pk" {
		t.Fatalf("PublicKey = %q, want trimmed", s.PublicKey())
	}
	if s.ttl != defaultTTL {
		t.Fatalf("ttl = %d, want default", s.ttl)
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &StatusError{Code: 500}
	if err.Error() != "push: unexpected status 500" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

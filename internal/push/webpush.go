// Package push wraps the web-push protocol send primitive used by the
// dispatch fan-out. One call, one subscriber, one encrypted message.
package push

import (
	"context"
	"net/http"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"
	"golang.org/x/time/rate"

	"likhtar/internal/config"
	"likhtar/internal/registry"
	logx "likhtar/pkg/logx"
)

// Result classifies one send attempt.
type Result int

const (
	// ResultSent: accepted by the push service.
	ResultSent Result = iota
	// ResultGone: the push service says the subscription no longer exists
	// (HTTP 404/410). The subscriber must be removed.
	ResultGone
	// ResultError: transient or unknown failure; keep the subscriber.
	ResultError
)

const (
	defaultRatePerSec = 20
	defaultTTL        = 3600
)

// Sender sends VAPID-signed web-push messages.
// With VAPID keys missing it is constructed disabled and every send
// reports ResultError without network traffic.
type Sender struct {
	enabled    bool
	subscriber string
	publicKey  string
	privateKey string
	ttl        int

	limiter *rate.Limiter
	log     logx.Logger
}

func NewSender(cfg config.PushConfig, log logx.Logger) *Sender {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	s := &Sender{
		subscriber: cfg.Subscriber,
		publicKey:  strings.TrimSpace(cfg.VAPIDPublicKey),
		privateKey: strings.TrimSpace(cfg.VAPIDPrivateKey),
		ttl:        ttl,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		log:        log,
	}
	s.enabled = s.publicKey != "" && s.privateKey != ""
	if !s.enabled {
		log.Warn("VAPID keys missing; push channel disabled")
	}
	return s
}

func (s *Sender) Enabled() bool { return s != nil && s.enabled }

// PublicKey returns the VAPID public key handed to browsers on subscribe.
func (s *Sender) PublicKey() string { return s.publicKey }

// Send delivers one payload to one subscriber.
func (s *Sender) Send(ctx context.Context, sub registry.PushSub, payload []byte) (Result, error) {
	if !s.Enabled() {
		return ResultError, ErrDisabled
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return ResultError, err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return ResultError, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ResultGone, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return ResultSent, nil
	default:
		return ResultError, &StatusError{Code: resp.StatusCode}
	}
}

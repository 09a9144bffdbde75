// Package signature verifies that inbound webhook bodies were signed by the
// payment provider. The provider sends a header of the form
//
//	t=1712345678,v1=5257a8...,v1=9fb21c...
//
// where each v1 is an HMAC-SHA256 over "<t>.<raw body>". Multiple v1 entries
// appear during secret rotation; the body is accepted if any one matches.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Lemonhead0712/heartheals-webhooks/internal/domain"
)

// FreshnessTolerance bounds how far an event's own creation timestamp may lag
// behind the server clock. Stale-but-correctly-signed events are treated as
// replays and rejected.
const FreshnessTolerance = 5 * time.Minute

var (
	ErrNoSecret        = errors.New("webhook shared secret is not configured")
	ErrMissingHeader   = errors.New("signature header is missing")
	ErrMalformedHeader = errors.New("signature header is malformed")
	ErrNoMatch         = errors.New("no signature in header matches the body")
)

type Verifier struct {
	secret string
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Verify checks the signature header against rawBody and, on success, parses
// the body into an InboundEvent. It never panics on hostile input; every
// failure comes back as a typed error.
func (v *Verifier) Verify(rawBody []byte, header string) (*domain.InboundEvent, error) {
	if v.secret == "" {
		return nil, ErrNoSecret
	}
	if header == "" {
		return nil, ErrMissingHeader
	}

	ts, candidates, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	matched := false
	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			matched = true
		}
	}
	if !matched {
		return nil, ErrNoMatch
	}

	var event domain.InboundEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, fmt.Errorf("Verify: parse body: %w", domain.ErrInvalidPayload)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("Verify: event missing id or type: %w", domain.ErrInvalidPayload)
	}
	return &event, nil
}

// FreshEnough reports whether the event's creation time is within the replay
// tolerance of the server clock. Checked after signature validity, never
// instead of it.
func (v *Verifier) FreshEnough(createdAt time.Time) bool {
	diff := v.now().UTC().Sub(createdAt.UTC())
	if diff < 0 {
		diff = -diff
	}
	return diff <= FreshnessTolerance
}

func parseHeader(header string) (int64, []string, error) {
	var (
		ts         int64
		tsSeen     bool
		candidates []string
	)

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrMalformedHeader
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrMalformedHeader
			}
			ts = parsed
			tsSeen = true
		case "v1":
			if value != "" {
				candidates = append(candidates, value)
			}
		default:
			// Unknown scheme versions are skipped, not rejected, so the
			// provider can introduce v2 without breaking older receivers.
		}
	}

	if !tsSeen || len(candidates) == 0 {
		return 0, nil, ErrMalformedHeader
	}
	return ts, candidates, nil
}

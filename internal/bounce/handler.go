// Package bounce ingests delivery-failure and complaint feedback from the
// comm provider and auto-denylists repeat offenders. The loop only ever
// blocks; nothing here un-blocks an identifier.
package bounce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sesame/internal/bounce/models"
	"sesame/internal/bounce/store"
	denylist "sesame/internal/denylist/service"
	identity "sesame/internal/identity/models"
	dErrors "sesame/pkg/domain-errors"
)

// DefaultPermanentBounceThreshold is how many permanent bounces an
// identifier may accumulate before it is blocked.
const DefaultPermanentBounceThreshold = 2

type Handler struct {
	store     store.Store
	denylist  *denylist.Service
	logger    *slog.Logger
	threshold int
	clock     func() time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithPermanentBounceThreshold(threshold int) Option {
	return func(h *Handler) {
		h.threshold = threshold
	}
}

func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		h.clock = clock
	}
}

func New(st store.Store, dl *denylist.Service, opts ...Option) (*Handler, error) {
	if st == nil {
		return nil, fmt.Errorf("bounce store is required")
	}
	if dl == nil {
		return nil, fmt.Errorf("denylist service is required")
	}

	h := &Handler{
		store:     st,
		denylist:  dl,
		threshold: DefaultPermanentBounceThreshold,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Process handles one feedback event, fanning out over its recipients.
func (h *Handler) Process(ctx context.Context, event *models.Event) error {
	if event == nil {
		return dErrors.New(dErrors.CodeValidation, "event is required")
	}
	if len(event.Recipients) == 0 {
		return dErrors.New(dErrors.CodeValidation, "event has no recipients")
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = h.clock()
	}

	switch event.Type {
	case models.FeedbackBounce:
		for _, recipient := range event.Recipients {
			if err := h.handleBounce(ctx, recipient, event, timestamp); err != nil {
				return err
			}
		}
	case models.FeedbackComplaint:
		for _, recipient := range event.Recipients {
			if err := h.handleComplaint(ctx, recipient, event, timestamp); err != nil {
				return err
			}
		}
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown feedback type %q", event.Type))
	}

	return nil
}

func (h *Handler) handleBounce(ctx context.Context, recipient string, event *models.Event, timestamp time.Time) error {
	value, hash := h.identify(recipient)

	record := &models.BounceRecord{
		IdentifierHash: hash,
		Identifier:     value,
		BounceType:     event.BounceType,
		MessageID:      event.MessageID,
		Timestamp:      timestamp,
	}
	if err := h.store.RecordBounce(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bounce")
	}

	if event.BounceType != models.BouncePermanent {
		return nil
	}

	count, err := h.store.GetBounceCount(ctx, hash, models.BouncePermanent)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count bounces")
	}
	if count < h.threshold {
		return nil
	}

	if err := h.denylist.BlockHash(ctx, hash, "repeated permanent bounces", nil); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.InfoContext(ctx, "identifier blocked after bounces",
			"event", "bounce_threshold_reached",
			"log_type", "audit",
			"bounce_count", count,
			"threshold", h.threshold,
		)
	}
	return nil
}

func (h *Handler) handleComplaint(ctx context.Context, recipient string, event *models.Event, timestamp time.Time) error {
	value, hash := h.identify(recipient)

	record := &models.ComplaintRecord{
		IdentifierHash: hash,
		Identifier:     value,
		ComplaintType:  event.ComplaintType,
		MessageID:      event.MessageID,
		Timestamp:      timestamp,
	}
	if err := h.store.RecordComplaint(ctx, record); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record complaint")
	}

	// A complaint always blocks; there is no threshold to reach.
	if err := h.denylist.BlockHash(ctx, hash, "spam complaint", nil); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.InfoContext(ctx, "identifier blocked after complaint",
			"event", "complaint_blocked",
			"log_type", "audit",
			"complaint_type", event.ComplaintType,
		)
	}
	return nil
}

// identify normalizes a recipient address so feedback keys line up with
// challenge identifier hashes. Unparsable recipients still get a stable
// hash over the trimmed, lower-cased raw value.
func (h *Handler) identify(recipient string) (value, hash string) {
	if id, err := identity.NewIdentifier(recipient); err == nil {
		return id.Value, id.Hash
	}
	fallback := strings.ToLower(strings.TrimSpace(recipient))
	return fallback, identity.HashValue(fallback)
}

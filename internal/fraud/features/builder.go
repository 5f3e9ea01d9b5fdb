// Package features derives the FeatureVector for one evaluation from the
// request, the velocity counts and the wall clock.
package features

import (
	"time"

	"payguard/internal/fraud/models"
	pstrings "payguard/pkg/platform/strings"
)

// Builder builds feature vectors. Safe for concurrent use.
type Builder struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLocation sets the zone used for hour-of-day and day-of-week.
// Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(b *Builder) {
		if loc != nil {
			b.loc = loc
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the vector. It never fails: every lookup has a default.
func (b *Builder) Build(req models.TransactionRequest, velocity1h, velocity24h int64) models.FeatureVector {
	now := b.now().In(b.loc)
	device := ParseDevice(req.DeviceInfo)

	return models.FeatureVector{
		Amount:       req.Amount.InexactFloat64(),
		Currency:     req.Currency,
		MerchantID:   pstrings.Fold(req.MerchantID),
		IPAddress:    req.IPAddress,
		Velocity1h:   velocity1h,
		Velocity24h:  velocity24h,
		MerchantRisk: MerchantRisk(req.MerchantID),
		IPRisk:       IPRisk(req.IPAddress),
		DeviceRisk:   DeviceRisk(device),
		InternalIP:   IsInternalIP(req.IPAddress),
		Browser:      device.Browser,
		HourOfDay:    now.Hour(),
		DayOfWeek:    isoWeekday(now.Weekday()),
	}
}

func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

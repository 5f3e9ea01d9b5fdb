package features

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"payguard/internal/fraud/models"
)

func TestMerchantRisk(t *testing.T) {
	assert.Equal(t, 0.8, MerchantRisk("high-risk-merchant"))
	assert.Equal(t, 0.7, MerchantRisk("Casino"))
	assert.Equal(t, 0.7, MerchantRisk("crypto-exchange"))
	assert.Equal(t, 0.1, MerchantRisk("premium-retailer"))
	assert.Equal(t, 0.3, MerchantRisk("corner-shop"))
	assert.Equal(t, 0.3, MerchantRisk(""))
}

func TestIPRisk(t *testing.T) {
	tests := []struct {
		ip       string
		internal bool
		risk     float64
	}{
		{"10.1.2.3", true, 0.1},
		{"172.16.0.9", true, 0.1},
		{"172.31.255.1", true, 0.1},
		{"192.168.1.100", true, 0.1},
		{"127.0.0.1", true, 0.1},
		{"::1", true, 0.1},
		{"172.32.0.1", false, 0.4},
		{"203.0.113.7", false, 0.8},
		{"8.8.8.8", false, 0.4},
		{"not-an-ip", false, 0.4},
		{"", false, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.internal, IsInternalIP(tt.ip))
			assert.Equal(t, tt.risk, IPRisk(tt.ip))
		})
	}
}

func TestDeviceRisk(t *testing.T) {
	t.Run("explicit browser", func(t *testing.T) {
		d := ParseDevice(map[string]string{"browser": "Chrome"})
		assert.Equal(t, "Chrome", d.Browser)
		assert.Equal(t, 0.2, DeviceRisk(d))
	})

	t.Run("missing device info", func(t *testing.T) {
		d := ParseDevice(nil)
		assert.Equal(t, 0.6, DeviceRisk(d))
	})

	t.Run("unknown browser", func(t *testing.T) {
		assert.Equal(t, 0.6, DeviceRisk(ParseDevice(map[string]string{"browser": "unknown"})))
	})

	t.Run("browser derived from user agent", func(t *testing.T) {
		d := ParseDevice(map[string]string{
			"userAgent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		})
		assert.Equal(t, "Chrome", d.Browser)
		assert.False(t, d.Bot)
		assert.Equal(t, 0.2, DeviceRisk(d))
	})

	t.Run("bot user agent", func(t *testing.T) {
		d := ParseDevice(map[string]string{
			"user_agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		})
		assert.True(t, d.Bot)
		assert.Equal(t, 0.9, DeviceRisk(d))
	})
}

func TestBuild(t *testing.T) {
	// Saturday 02:30 UTC
	fixed := time.Date(2024, 6, 15, 2, 30, 0, 0, time.UTC)
	b := NewBuilder(WithClock(func() time.Time { return fixed }))

	fv := b.Build(models.TransactionRequest{
		UserID:     "u1",
		Amount:     decimal.RequireFromString("1500.50"),
		Currency:   "USD",
		MerchantID: "Casino",
		IPAddress:  "203.0.113.5",
		DeviceInfo: map[string]string{"browser": "Firefox"},
	}, 3, 40)

	assert.InDelta(t, 1500.50, fv.Amount, 1e-9)
	assert.Equal(t, "casino", fv.MerchantID)
	assert.Equal(t, int64(3), fv.Velocity1h)
	assert.Equal(t, int64(40), fv.Velocity24h)
	assert.Equal(t, 0.7, fv.MerchantRisk)
	assert.Equal(t, 0.8, fv.IPRisk)
	assert.Equal(t, 0.2, fv.DeviceRisk)
	assert.False(t, fv.InternalIP)
	assert.Equal(t, 2, fv.HourOfDay)
	assert.Equal(t, 6, fv.DayOfWeek)
	assert.True(t, fv.IsWeekend())
	assert.True(t, fv.IsNight())
	assert.False(t, fv.IsRushHour())

	m := fv.Map()
	assert.Len(t, m, 13)
	assert.Equal(t, int64(3), m[models.FeatureVelocity1h])
	assert.Equal(t, "Firefox", m[models.FeatureBrowser])
}

func TestBuildUsesLocation(t *testing.T) {
	// Sunday 23:30 UTC is Monday 08:30 in Tokyo
	fixed := time.Date(2024, 6, 16, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*3600)
	b := NewBuilder(WithClock(func() time.Time { return fixed }), WithLocation(tokyo))

	fv := b.Build(models.TransactionRequest{Amount: decimal.NewFromInt(1)}, 1, 1)
	assert.Equal(t, 8, fv.HourOfDay)
	assert.Equal(t, 1, fv.DayOfWeek)
	assert.True(t, fv.IsRushHour())

	sunday := NewBuilder(WithClock(func() time.Time { return fixed })).Build(models.TransactionRequest{Amount: decimal.NewFromInt(1)}, 1, 1)
	assert.Equal(t, 7, sunday.DayOfWeek)
}

package models

// Feature names as exposed to the scoring service and to stored rule
// conditions.
const (
	FeatureAmount       = "amount"
	FeatureCurrency     = "currency"
	FeatureMerchantID   = "merchant_id"
	FeatureIPAddress    = "ip_address"
	FeatureVelocity1h   = "velocity_1h"
	FeatureVelocity24h  = "velocity_24h"
	FeatureMerchantRisk = "merchant_risk"
	FeatureIPRisk       = "ip_risk"
	FeatureDeviceRisk   = "device_risk"
	FeatureInternalIP   = "is_internal_ip"
	FeatureBrowser      = "browser"
	FeatureHourOfDay    = "hour_of_day"
	FeatureDayOfWeek    = "day_of_week"
)

var featureNames = []string{
	FeatureAmount,
	FeatureCurrency,
	FeatureMerchantID,
	FeatureIPAddress,
	FeatureVelocity1h,
	FeatureVelocity24h,
	FeatureMerchantRisk,
	FeatureIPRisk,
	FeatureDeviceRisk,
	FeatureInternalIP,
	FeatureBrowser,
	FeatureHourOfDay,
	FeatureDayOfWeek,
}

// FeatureVector holds the derived signals for one evaluation. It exists only
// for the duration of that evaluation, apart from the snapshot stored with the
// saved record.
type FeatureVector struct {
	Amount       float64
	Currency     string
	MerchantID   string
	IPAddress    string
	Velocity1h   int64
	Velocity24h  int64
	MerchantRisk float64
	IPRisk       float64
	DeviceRisk   float64
	InternalIP   bool
	Browser      string
	HourOfDay    int
	DayOfWeek    int // ISO weekday, 1=Monday .. 7=Sunday
}

// Lookup returns the named feature value. Numeric features are float64,
// int64 or int; flags are bool; identifiers are string.
func (f FeatureVector) Lookup(name string) (any, bool) {
	switch name {
	case FeatureAmount:
		return f.Amount, true
	case FeatureCurrency:
		return f.Currency, true
	case FeatureMerchantID:
		return f.MerchantID, true
	case FeatureIPAddress:
		return f.IPAddress, true
	case FeatureVelocity1h:
		return f.Velocity1h, true
	case FeatureVelocity24h:
		return f.Velocity24h, true
	case FeatureMerchantRisk:
		return f.MerchantRisk, true
	case FeatureIPRisk:
		return f.IPRisk, true
	case FeatureDeviceRisk:
		return f.DeviceRisk, true
	case FeatureInternalIP:
		return f.InternalIP, true
	case FeatureBrowser:
		return f.Browser, true
	case FeatureHourOfDay:
		return f.HourOfDay, true
	case FeatureDayOfWeek:
		return f.DayOfWeek, true
	}
	return nil, false
}

// Map renders the vector as the flat key/value map sent to the scoring
// service and stored as the feature snapshot.
func (f FeatureVector) Map() map[string]any {
	out := make(map[string]any, len(featureNames))
	for _, name := range featureNames {
		v, _ := f.Lookup(name)
		out[name] = v
	}
	return out
}

// IsWeekend reports Saturday or Sunday.
func (f FeatureVector) IsWeekend() bool {
	return f.DayOfWeek >= 6
}

// IsNight reports hours before 06:00 or after 22:59.
func (f FeatureVector) IsNight() bool {
	return f.HourOfDay < 6 || f.HourOfDay > 22
}

// IsRushHour reports the morning and evening commuting windows.
func (f FeatureVector) IsRushHour() bool {
	return (f.HourOfDay >= 8 && f.HourOfDay <= 10) || (f.HourOfDay >= 17 && f.HourOfDay <= 19)
}

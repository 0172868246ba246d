package types

import "adgate/internal/validator"

// SettingsKey is the fixed key of the frequency settings record
const SettingsKey = "ad_frequency"

// FrequencySettings caps how often non-premium users see ads
type FrequencySettings struct {
	MaxAdsPerHour        int `json:"max_ads_per_hour" mapstructure:"max_ads_per_hour" binding:"required,gt=0"`
	MaxAdsPerDay         int `json:"max_ads_per_day" mapstructure:"max_ads_per_day" binding:"required,gt=0"`
	MinSecondsBetweenAds int `json:"min_seconds_between_ads" mapstructure:"min_seconds_between_ads" binding:"gte=0"`
}

// DefaultFrequencySettings returns the settings in effect until the store is read
func DefaultFrequencySettings() FrequencySettings {
	return FrequencySettings{
		MaxAdsPerHour:        6,
		MaxAdsPerDay:         50,
		MinSecondsBetweenAds: 0,
	}
}

// Validate checks the binding rules of the fields
func (s FrequencySettings) Validate() error {
	return validator.New().Struct(s)
}

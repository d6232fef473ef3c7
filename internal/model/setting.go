package model

const (
	SettingConversionRate = "conversionRate"
	DefaultCoinRate       = 9
)

type Setting struct {
	Key      string `json:"key"`
	IntValue int    `json:"int_value"`
}

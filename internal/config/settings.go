package config

import (
	"strconv"
	"strings"
	"time"
)

// Recognized per-feature setting names, resolvable per form.
const (
	SettingEnable          = "enable"
	SettingMinDelay        = "min_delay"      // seconds
	SettingMinLength       = "min_len"        // runes
	SettingStopwordCount   = "stopword_count" // minimum stopword hits
	SettingLanguage        = "language"
	SettingAddressBlock    = "ip_block"     // address-level enforcement toggle
	SettingAddressBlockTTL = "ip_block_ttl" // base hours, informational
	SettingBlockTime       = "block_time"   // session block duration, minutes
)

// settingDefaults is the hard fallback at the end of every override chain.
var settingDefaults = map[string]string{
	SettingEnable:          "0",
	SettingMinDelay:        "15",
	SettingMinLength:       "15",
	SettingStopwordCount:   "2",
	SettingLanguage:        "de",
	SettingAddressBlock:    "0",
	SettingAddressBlockTTL: "24",
	SettingBlockTime:       "30",
}

// Settings are the per-feature values resolved for one request. They are
// recomputed on every request, never cached, since administrators may
// change the sources at any time.
type Settings struct {
	Enabled              bool
	MinDelay             time.Duration
	MinLength            int
	StopwordCount        int
	Language             string
	AddressEnforcement   bool
	BaseBlockTTLHours    int
	SessionBlockDuration time.Duration
}

// Source is one layer of the setting override chain.
type Source interface {
	// Lookup returns the raw value for a setting name. An empty value
	// counts as absent, so a layer cannot override with "".
	Lookup(name string) (string, bool)
}

// MapSource adapts a plain map to a Source.
type MapSource map[string]string

func (m MapSource) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ResolveSettings walks the ordered sources (highest priority first) and
// falls back to the built-in defaults. Invalid or negative numeric values
// fall back to their default; configuration problems are never fatal.
func ResolveSettings(sources ...Source) Settings {
	raw := func(name string) string {
		for _, src := range sources {
			if src == nil {
				continue
			}
			if v, ok := src.Lookup(name); ok && v != "" {
				return v
			}
		}
		return settingDefaults[name]
	}

	return Settings{
		Enabled:              isOne(raw(SettingEnable)),
		MinDelay:             time.Duration(settingInt(raw(SettingMinDelay), SettingMinDelay)) * time.Second,
		MinLength:            settingInt(raw(SettingMinLength), SettingMinLength),
		StopwordCount:        settingInt(raw(SettingStopwordCount), SettingStopwordCount),
		Language:             raw(SettingLanguage),
		AddressEnforcement:   isOne(raw(SettingAddressBlock)),
		BaseBlockTTLHours:    settingInt(raw(SettingAddressBlockTTL), SettingAddressBlockTTL),
		SessionBlockDuration: time.Duration(settingInt(raw(SettingBlockTime), SettingBlockTime)) * time.Minute,
	}
}

// settingInt parses a non-negative integer, falling back to the setting's
// default on garbage or negative input.
func settingInt(raw, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		n, _ = strconv.Atoi(settingDefaults[name])
	}
	return n
}

func isOne(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

package webhook

import (
	"omega/internal/models"
	"strings"
	"time"
)

// Tier is the plan granted for a purchased product.
type Tier struct {
	Label    string
	Quota    int
	Duration time.Duration
}

// Tiers resolves product names to plan tiers. Rules are tried in order and
// matched as case-insensitive substrings; the default applies otherwise.
type Tiers struct {
	rules      []models.TierConfig
	defaultCfg models.TierConfig
}

// NewTiers builds a resolver from configuration.
func NewTiers(cfg models.WebhookConfig) *Tiers {
	rules := make([]models.TierConfig, len(cfg.Tiers))
	copy(rules, cfg.Tiers)
	return &Tiers{rules: rules, defaultCfg: cfg.Default}
}

// TierFor returns the tier for productName.
func (t *Tiers) TierFor(productName string) Tier {
	name := strings.ToUpper(productName)
	for _, rule := range t.rules {
		if strings.Contains(name, strings.ToUpper(rule.Match)) {
			return tierFromConfig(rule)
		}
	}
	return tierFromConfig(t.defaultCfg)
}

func tierFromConfig(cfg models.TierConfig) Tier {
	return Tier{Label: cfg.Label, Quota: cfg.Quota, Duration: cfg.Duration}
}

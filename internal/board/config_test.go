package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "832767334904102982", cfg.ChannelID)
	assert.Equal(t, "husk", cfg.Emoji)
	assert.Equal(t, 4, cfg.MinStars)
	assert.Len(t, cfg.Tiers, 3)
}

func TestSelectTier(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		count int
		want  string
	}{
		{0, "<:hu:1002943896311042119>"},
		{4, "<:hu:1002943896311042119>"},
		{5, "<:hu:1002943896311042119>"},
		{6, "<:husk:859796756111294474>"},
		{9, "<:husk:859796756111294474>"},
		{10, "<:husker:1041822220479111238>"},
		{250, "<:husker:1041822220479111238>"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.SelectTier(tt.count), "count %d", tt.count)
	}
}

func TestSelectTier_UnsortedTiers(t *testing.T) {
	cfg := Config{Tiers: []Tier{{Min: 10, Emote: "gold"}, {Min: 1, Emote: "bronze"}, {Min: 5, Emote: "silver"}}}

	assert.Equal(t, "bronze", cfg.SelectTier(4))
	assert.Equal(t, "silver", cfg.SelectTier(5))
	assert.Equal(t, "gold", cfg.SelectTier(11))
	assert.Equal(t, "", Config{}.SelectTier(3))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing channel", func(c *Config) { c.ChannelID = "" }, "channel_id is required"},
		{"missing emoji", func(c *Config) { c.Emoji = "" }, "emoji is required"},
		{"zero threshold", func(c *Config) { c.MinStars = 0 }, "min_stars must be at least 1"},
		{"no tiers", func(c *Config) { c.Tiers = nil }, "at least one tier"},
		{"duplicate tier", func(c *Config) { c.Tiers = append(c.Tiers, Tier{Min: 6, Emote: "x"}) }, "min 6 is duplicated"},
		{"empty emote", func(c *Config) { c.Tiers[0].Emote = "" }, "tier 0 has no emote"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

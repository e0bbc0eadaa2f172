package board

import (
	"errors"
	"fmt"
	"sort"
)

// Domain is the engine domain and identity tag kind of board mirrors.
const Domain = "board"

// Defaults of the original deployment.
const (
	DefaultChannelID   = "832767334904102982"
	DefaultEmoji       = "husk"
	DefaultMinStars    = 4
	DefaultWebhookName = "Huskboard Webhook"
	DefaultUsername    = "Huskboard"
	DefaultAvatarURL   = "https://files.catbox.moe/y7a4m5.webp"
)

// Tier maps an inclusive lower count bound to an emote.
type Tier struct {
	Min   int    `json:"min" yaml:"min"`
	Emote string `json:"emote" yaml:"emote"`
}

// Config is the board configuration.
type Config struct {
	// GuildID restricts reactions to one guild. Empty accepts any guild.
	GuildID   string `json:"guild_id,omitempty" yaml:"guild_id,omitempty" env:"GUILD_ID"`
	ChannelID string `json:"channel_id" yaml:"channel_id" env:"CHANNEL_ID"`
	Emoji     string `json:"emoji" yaml:"emoji" env:"EMOJI"`
	MinStars  int    `json:"min_stars" yaml:"min_stars" env:"MIN_STARS"`
	Tiers     []Tier `json:"tiers" yaml:"tiers"`

	// Webhook persona. Mirrors of messages posted in the board channel
	// itself use Username/AvatarURL; all others use the bot's own identity.
	WebhookName  string `json:"webhook_name" yaml:"webhook_name" env:"WEBHOOK_NAME"`
	Username     string `json:"username" yaml:"username" env:"USERNAME"`
	AvatarURL    string `json:"avatar_url" yaml:"avatar_url" env:"AVATAR_URL"`
	BotUsername  string `json:"bot_username,omitempty" yaml:"bot_username,omitempty" env:"BOT_USERNAME"`
	BotAvatarURL string `json:"bot_avatar_url,omitempty" yaml:"bot_avatar_url,omitempty" env:"BOT_AVATAR_URL"`
}

// DefaultTiers returns the three emote tiers of the original board.
func DefaultTiers() []Tier {
	return []Tier{
		{Min: 1, Emote: "<:hu:1002943896311042119>"},
		{Min: 6, Emote: "<:husk:859796756111294474>"},
		{Min: 10, Emote: "<:husker:1041822220479111238>"},
	}
}

// DefaultConfig returns the configuration of the original deployment.
func DefaultConfig() Config {
	return Config{
		ChannelID:   DefaultChannelID,
		Emoji:       DefaultEmoji,
		MinStars:    DefaultMinStars,
		Tiers:       DefaultTiers(),
		WebhookName: DefaultWebhookName,
		Username:    DefaultUsername,
		AvatarURL:   DefaultAvatarURL,
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.ChannelID == "" {
		errs = append(errs, errors.New("board channel_id is required"))
	}
	if c.Emoji == "" {
		errs = append(errs, errors.New("board emoji is required"))
	}
	if c.MinStars < 1 {
		errs = append(errs, fmt.Errorf("board min_stars must be at least 1, got %d", c.MinStars))
	}
	if len(c.Tiers) == 0 {
		errs = append(errs, errors.New("board needs at least one tier"))
	}
	seen := make(map[int]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.Emote == "" {
			errs = append(errs, fmt.Errorf("board tier %d has no emote", i))
		}
		if t.Min < 0 {
			errs = append(errs, fmt.Errorf("board tier %d has negative min %d", i, t.Min))
		}
		if seen[t.Min] {
			errs = append(errs, fmt.Errorf("board tier min %d is duplicated", t.Min))
		}
		seen[t.Min] = true
	}
	return errors.Join(errs...)
}

// SelectTier returns the emote of the highest tier whose lower bound is at
// most count. Counts below every tier get the lowest tier.
func (c Config) SelectTier(count int) string {
	if len(c.Tiers) == 0 {
		return ""
	}
	tiers := append([]Tier(nil), c.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })

	emote := tiers[0].Emote
	for _, t := range tiers {
		if count >= t.Min {
			emote = t.Emote
		}
	}
	return emote
}

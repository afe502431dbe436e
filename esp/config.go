package esp

import (
	"io"
	"log/slog"
	"time"

	"i4.energy/across/esp8266/at"
)

type Config struct {
	Dialer Dialer
	// ResetLine is used by Reboot. When nil, the Transport is used if it
	// implements ResetLine.
	ResetLine ResetLine
	// Budget is the default number of poll iterations for a wait. Zero
	// selects at.DefaultBudget unless it was set through WithBudget, in
	// which case waits only succeed on data that is already buffered.
	Budget    int
	budgetSet bool
	// Tick is the delay between poll iterations that drained nothing.
	Tick time.Duration
	// SettleDelay is the pause after AT+CIPSTART and AT+CIPSEND before the
	// module is expected to accept more input.
	SettleDelay time.Duration
	// MaxResponse caps the bytes accumulated by a single drain.
	MaxResponse int
	// IdleTicks is how many ticks a Worker waits between reads when idle.
	IdleTicks int
	// Observer receives a copy of every byte drained from the module.
	Observer io.Writer
	Logger   *slog.Logger
	// Sleep replaces time.Sleep, mainly for tests.
	Sleep func(time.Duration)
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	if c.Budget < 0 {
		return ErrInvalidBudget
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Budget == 0 && !c.budgetSet {
		c.Budget = at.DefaultBudget
	}
	if c.Tick == 0 {
		c.Tick = time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 200 * time.Millisecond
	}
	if c.MaxResponse == 0 {
		c.MaxResponse = 4096
	}
	if c.IdleTicks == 0 {
		c.IdleTicks = 10
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder holding an empty Config.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithResetLine(r ResetLine) *ConfigBuilder {
	b.config.ResetLine = r
	return b
}

func (b *ConfigBuilder) WithBudget(iterations int) *ConfigBuilder {
	b.config.Budget = iterations
	b.config.budgetSet = true
	return b
}

func (b *ConfigBuilder) WithTick(d time.Duration) *ConfigBuilder {
	b.config.Tick = d
	return b
}

func (b *ConfigBuilder) WithSettleDelay(d time.Duration) *ConfigBuilder {
	b.config.SettleDelay = d
	return b
}

func (b *ConfigBuilder) WithMaxResponse(n int) *ConfigBuilder {
	b.config.MaxResponse = n
	return b
}

func (b *ConfigBuilder) WithIdleTicks(n int) *ConfigBuilder {
	b.config.IdleTicks = n
	return b
}

func (b *ConfigBuilder) WithObserver(w io.Writer) *ConfigBuilder {
	b.config.Observer = w
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithSleep(sleep func(time.Duration)) *ConfigBuilder {
	b.config.Sleep = sleep
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}

package clock

import (
	"time"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/logger"
)

// Clock resolves "now" in the venue's timezone. The controller and the
// auto-start timer only ever read time through this interface so tests
// can drive it.
type Clock interface {
	Now() time.Time
}

// ZoneClock reports time in a fixed *time.Location.
type ZoneClock struct {
	loc *time.Location
}

// NewZoneClock resolves the configured zone name. When zone data is
// unavailable the fallback mode decides: "fixed" uses the configured
// UTC offset, anything else uses the system local zone.
func NewZoneClock(cfg config.TimerConfig) *ZoneClock {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			return &ZoneClock{loc: loc}
		}
		logger.Warn("timezone data unavailable, using fallback",
			"zone", cfg.Timezone, "mode", cfg.TZFallbackMode)
	}
	if cfg.TZFallbackMode == "fixed" {
		name := time.FixedZone("UTC-fallback", cfg.FallbackUTCOffset*3600)
		return &ZoneClock{loc: name}
	}
	return &ZoneClock{loc: time.Local}
}

func (c *ZoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location exposes the resolved zone, for date math.
func (c *ZoneClock) Location() *time.Location {
	return c.loc
}

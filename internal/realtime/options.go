package realtime

import (
	"net/http"
	"time"

	"github.com/HammerMeetNail/lingopals/internal/config"
)

type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	InboundRate    float64
	InboundBurst   int
	TrustQueryUser bool
	// CheckOrigin is passed to the upgrader. Nil allows any origin.
	CheckOrigin func(r *http.Request) bool
}

func OptionsFromConfig(cfg config.RealtimeConfig) Options {
	return Options{
		SendBuffer:     cfg.SendBuffer,
		WriteWait:      cfg.WriteWait,
		PongWait:       cfg.PongWait,
		PingPeriod:     cfg.PingPeriod,
		MaxMessageSize: cfg.MaxMessageSize,
		InboundRate:    cfg.InboundRate,
		InboundBurst:   cfg.InboundBurst,
		TrustQueryUser: cfg.TrustQueryUser,
	}
}

func (o Options) withDefaults() Options {
	if o.SendBuffer < 1 {
		o.SendBuffer = 16
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.InboundRate <= 0 {
		o.InboundRate = 5
	}
	if o.InboundBurst < 1 {
		o.InboundBurst = 10
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(*http.Request) bool { return true }
	}
	return o
}

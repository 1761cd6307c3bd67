package session

import "time"

// Config carries the tunable session parameters, loadable from the
// environment via core/config.
type Config struct {
	PingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	SendQueueSize  int           `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"1048576"`
	ReadBufferSize int           `env:"WS_READ_BUFFER_SIZE" envDefault:"1024"`
	WriteBuffer    int           `env:"WS_WRITE_BUFFER_SIZE" envDefault:"1024"`
}

// WithConfig applies the loaded configuration to a handler.
func WithConfig(cfg Config) Option {
	return func(h *handlerConfig) {
		if cfg.PingInterval > 0 {
			h.pingInterval = cfg.PingInterval
		}
		if cfg.WriteTimeout > 0 {
			h.writeTimeout = cfg.WriteTimeout
		}
		if cfg.SendQueueSize > 0 {
			h.sendQueueSize = cfg.SendQueueSize
		}
		if cfg.MaxMessageSize > 0 {
			h.maxMessageSize = cfg.MaxMessageSize
		}
		if cfg.ReadBufferSize > 0 {
			h.upgrader.ReadBufferSize = cfg.ReadBufferSize
		}
		if cfg.WriteBuffer > 0 {
			h.upgrader.WriteBufferSize = cfg.WriteBuffer
		}
	}
}

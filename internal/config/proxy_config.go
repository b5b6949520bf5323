package config

import (
	"strings"
	"time"
)

type ProxyConfig interface {
	GetAPIBaseURL() string
	GetUpstreamTimeout() time.Duration
	GetMaxResponseBytes() int64
}

type Proxy struct {
	APIBaseURL       string        `env:"API_BASE_URL" envDefault:"https://api.spotify.com"`
	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	MaxResponseBytes int64         `env:"MAX_RESPONSE_BYTES" envDefault:"10485760"` // 10 MiB
}

var _ ProxyConfig = Proxy{}

func (p Proxy) GetAPIBaseURL() string {
	return strings.TrimSuffix(p.APIBaseURL, "/")
}

func (p Proxy) GetUpstreamTimeout() time.Duration {
	return p.UpstreamTimeout
}

func (p Proxy) GetMaxResponseBytes() int64 {
	return p.MaxResponseBytes
}

package binance

import "time"

// Config 描述 Binance 合约行情源的接入参数。
// 公共行情无需密钥；填入 APIKey/SecretKey 仅为提升限频额度。
type Config struct {
	RESTBaseURL     string
	WSBaseURL       string
	APIKey          string
	SecretKey       string
	RateLimitPerMin int
	WSBatchSize     int
	HTTPTimeout     time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.WSBaseURL == "" {
		out.WSBaseURL = "wss://fstream.binance.com/stream"
	}
	if out.RateLimitPerMin <= 0 {
		out.RateLimitPerMin = 1200
	}
	if out.WSBatchSize <= 0 {
		out.WSBatchSize = 150
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}

package notification

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig(timeoutMS int) *Config {
	if timeoutMS <= 0 {
		timeoutMS = 30000
	}
	return &Config{
		Timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

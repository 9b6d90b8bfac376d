package export

import "time"

type Config struct {
	Bucket     string
	PresignTTL time.Duration
	Timeout    time.Duration
}

func LoadConfig(bucket string, presignTTLSeconds, timeoutMS int) *Config {
	if presignTTLSeconds <= 0 {
		presignTTLSeconds = 24 * 3600
	}
	if timeoutMS <= 0 {
		timeoutMS = 120000
	}
	return &Config{
		Bucket:     bucket,
		PresignTTL: time.Duration(presignTTLSeconds) * time.Second,
		Timeout:    time.Duration(timeoutMS) * time.Millisecond,
	}
}

package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	cfg := LoadConfig(5000)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestLoadConfigDefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(0).Timeout)
	assert.Equal(t, 30*time.Second, LoadConfig(-1).Timeout)
}

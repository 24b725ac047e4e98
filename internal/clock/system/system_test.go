package system_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seoforge/inlink-prospector/internal/clock/system"
)

func TestNowIsUTC(t *testing.T) {
	clk := system.New()
	now := clk.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now().UTC(), now, time.Second)
}

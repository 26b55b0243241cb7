package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"treasury/internal/model/enum"
)

func TestResolveDefaults(t *testing.T) {
	loaded := resolve(FileConfig{})

	assert.Equal(t, ":8080", loaded.Server.Listen)
	assert.Equal(t, enum.BridgeNetworkTestnet4, loaded.Bridge.Network)
	assert.Equal(t, time.Minute, loaded.Jobs.Verify)
	assert.Equal(t, 30*time.Second, loaded.Jobs.Orders)
	assert.Equal(t, 5*time.Minute, loaded.Jobs.CompletionSweep)
}

func TestResolveExplicitIntervals(t *testing.T) {
	loaded := resolve(FileConfig{
		Jobs: JobsConfig{
			VerifySeconds:       10,
			OrderSeconds:        5,
			ReactivationSeconds: 120,
		},
	})

	assert.Equal(t, 10*time.Second, loaded.Jobs.Verify)
	assert.Equal(t, 5*time.Second, loaded.Jobs.Orders)
	assert.Equal(t, 2*time.Minute, loaded.Jobs.Reactivation)
	assert.Equal(t, time.Minute, loaded.Jobs.PipelineSweep)
}

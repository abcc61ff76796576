// internal/storage/sweeper.go
package storage

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/Corphon/SocialGenius/internal/utils"
)

// StartSweeper schedules every sweeper on a cron spec such as "@every 10m".
// The caller stops the returned scheduler on shutdown.
func StartSweeper(spec string, sweepers ...Sweeper) (*cron.Cron, error) {
	logger := utils.GetLogger().WithComponent("sweeper")

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed := 0
		for _, s := range sweepers {
			removed += s.Sweep()
		}
		if removed > 0 {
			utils.GetMetricsCollector().AddCounter("cache.swept", int64(removed))
			logger.Info("Removed expired entries", map[string]interface{}{"removed": removed})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", spec, err)
	}

	c.Start()
	return c, nil
}

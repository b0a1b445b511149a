package jobs

import (
	"context"
	"time"

	"github.com/JeduDev/lugx/internal/logger"
)

// ExpireOverdueRentals transitions active rentals whose end time has
// passed to expired and returns their garments to the available pool.
func (jr *JobRunner) ExpireOverdueRentals() {
	jr.runWithRecovery("ExpireOverdueRentals", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		count, err := jr.store.ExpireOverdue(ctx, time.Now().UTC())
		if err != nil {
			logger.Error("Failed to expire overdue rentals", "error", err)
			return
		}
		logger.Info("Expired overdue rentals", "count", count)
	})
}

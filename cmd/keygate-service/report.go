// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"
)

// reportLedger publishes enforcer statistics to the metrics gauge once
// at start and then every interval until ctx is cancelled.
func (ks *KeygateService) reportLedger(ctx context.Context, interval time.Duration) error {
	ticker := ks.clock.NewTicker(interval)
	defer ticker.Stop()

	ks.publishStats()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ks.publishStats()
		}
	}
}

func (ks *KeygateService) publishStats() {
	stats := ks.enforcer.Stats()
	ks.metrics.SetLedgerKeys(stats.TrackedKeys)
}

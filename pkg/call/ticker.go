// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package call

import "time"

// Ticker paces the media loop.
type Ticker interface {
	Ch() <-chan time.Time
	Stop()
}

// TickerFactory creates the media loop Ticker.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t *timeTicker) Ch() <-chan time.Time {
	return t.C
}

func newTimeTicker(d time.Duration) Ticker {
	return &timeTicker{Ticker: time.NewTicker(d)}
}

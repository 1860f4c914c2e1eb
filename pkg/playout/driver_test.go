// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package playout

import (
	"testing"
	"time"

	"github.com/pion/securecall/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	samples int
	rate    float64
	ticks   int
}

func (p *fakeProvider) Tick(_ time.Time, out []int16) (int, float64) {
	p.ticks++
	n := min(p.samples, len(out))
	for i := range out[:n] {
		out[i] = int16(p.ticks) //nolint:gosec // G115
	}

	return n, p.rate
}

func testConfig() Config {
	return Config{
		InitialLevel:     400,
		MinLevel:         200,
		MaxLevel:         800,
		LevelStep:        100,
		DecreaseInterval: time.Second,
		MaxFrameSamples:  1000,
		MaxTicksPerFill:  8,
	}
}

func TestDriverFillsToLevel(t *testing.T) {
	provider := &fakeProvider{samples: 160, rate: 1}
	device := test.NewFakePlayback(10000)
	driver, err := New(provider, device, WithConfig(testConfig()))
	require.NoError(t, err)

	require.NoError(t, driver.Fill(time.Unix(0, 0)))
	// 160, 320, 480: the third frame crosses the 400 sample level.
	assert.Equal(t, 3, provider.ticks)
	assert.Equal(t, 480, device.Buffered())

	require.NoError(t, driver.Fill(time.Unix(0, 0)))
	assert.Equal(t, 3, provider.ticks, "no pull while the device is above level")
}

func TestDriverAppliesRate(t *testing.T) {
	provider := &fakeProvider{samples: 200, rate: 0.85}
	device := test.NewFakePlayback(10000)
	driver, err := New(provider, device, WithConfig(testConfig()))
	require.NoError(t, err)

	require.NoError(t, driver.Fill(time.Unix(0, 0)))
	assert.Equal(t, 3*170, device.Buffered())
}

func TestDriverKeepsUnacceptedSamples(t *testing.T) {
	provider := &fakeProvider{samples: 160, rate: 1}
	device := test.NewFakePlayback(250)
	cfg := testConfig()
	cfg.InitialLevel = 200
	driver, err := New(provider, device, WithConfig(cfg))
	require.NoError(t, err)

	now := time.Unix(0, 0)
	require.NoError(t, driver.Fill(now))
	assert.Equal(t, 2, provider.ticks)
	assert.Equal(t, 250, device.Buffered())
	assert.Equal(t, 70, len(driver.pending))

	device.Drain(100)
	require.NoError(t, driver.Fill(now))
	assert.Equal(t, 0, len(driver.pending))
	assert.Equal(t, 220, device.Buffered())

	written := device.Written()
	assert.Len(t, written, 320)
	assert.Equal(t, int16(2), written[len(written)-1])
}

func TestDriverLearnsLevel(t *testing.T) {
	provider := &fakeProvider{samples: 160, rate: 1}
	device := test.NewFakePlayback(10000)
	driver, err := New(provider, device, WithConfig(testConfig()))
	require.NoError(t, err)

	now := time.Unix(0, 0)
	require.NoError(t, driver.Fill(now))
	assert.Equal(t, 400, driver.Level())

	// The device ran dry: every underrun raises the level, up to the max.
	for i := 0; i < 10; i++ {
		device.Drain(device.Buffered())
		now = now.Add(20 * time.Millisecond)
		require.NoError(t, driver.Fill(now))
	}
	assert.Equal(t, 800, driver.Level())

	// Quiet intervals bring it back down to the min.
	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.NoError(t, driver.Fill(now))
	}
	assert.Equal(t, 200, driver.Level())
}

func TestDriverInitialLevelClamped(t *testing.T) {
	device := test.NewFakePlayback(10000)

	driver, err := New(&fakeProvider{samples: 160, rate: 1}, device, WithConfig(testConfig()), WithInitialLevel(650))
	require.NoError(t, err)
	assert.Equal(t, 650, driver.Level())

	driver, err = New(&fakeProvider{samples: 160, rate: 1}, device, WithConfig(testConfig()), WithInitialLevel(5))
	require.NoError(t, err)
	assert.Equal(t, 200, driver.Level())
}

func TestDriverInitialLevelBeforeConfig(t *testing.T) {
	driver, err := New(&fakeProvider{samples: 160, rate: 1}, test.NewFakePlayback(10000),
		WithInitialLevel(650), WithConfig(testConfig()))
	require.NoError(t, err)
	assert.Equal(t, 650, driver.Level())
}

func TestDriverWriteError(t *testing.T) {
	device := test.NewFakePlayback(10000)
	driver, err := New(&fakeProvider{samples: 160, rate: 1}, device)
	require.NoError(t, err)

	require.NoError(t, device.Close())
	assert.Error(t, driver.Fill(time.Unix(0, 0)))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, test.NewFakePlayback(1))
	assert.ErrorIs(t, err, ErrNilDevice)

	cfg := testConfig()
	cfg.LevelStep = 0
	_, err = New(&fakeProvider{}, test.NewFakePlayback(1), WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

package socket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWatermarkHighFiresOnceUntilReversed(t *testing.T) {
	w := newWatermarks(10, 100)
	require.Nil(t, w.observe(50))
	ev := w.observe(150)
	require.NotNil(t, ev)
	require.Equal(t, WatermarkHigh, ev.Level)
	require.Nil(t, w.observe(200))
	require.Nil(t, w.observe(120))
}

func TestWatermarkLowFiresOnceUntilReversed(t *testing.T) {
	w := newWatermarks(10, 100)
	w.observe(150)
	require.Nil(t, w.observe(50))
	ev := w.observe(5)
	require.NotNil(t, ev)
	require.Equal(t, WatermarkLow, ev.Level)
	require.Nil(t, w.observe(0))
}

func TestWatermarkNoEventWhileStayingBetween(t *testing.T) {
	w := newWatermarks(10, 100)
	require.Nil(t, w.observe(50))
	require.Nil(t, w.observe(60))
	require.Nil(t, w.observe(40))
}

package monitor

import (
	"github.com/holoplot/go-evdev"

	"gamepadd/internal/device"
)

// axisThreshold holds the precomputed deadzone for one axis.
type axisThreshold struct {
	center    int32
	threshold int32
}

// Classifier decides whether a raw input event counts as activity.
//
// Button state changes are always activity. Axis movement counts only
// outside a deadzone around the rest position, so a drifting analog
// stick parked near center does not hold the inhibition forever.
type Classifier struct {
	axes map[evdev.EvCode]axisThreshold
}

// NewClassifier builds a classifier from the device's axis ranges.
// deadzone is the fraction of each axis half-range treated as noise;
// the kernel-reported flat zone acts as a floor.
func NewClassifier(axes map[evdev.EvCode]device.AxisRange, deadzone float64) *Classifier {
	c := &Classifier{axes: make(map[evdev.EvCode]axisThreshold, len(axes))}

	for code, r := range axes {
		span := float64(r.Max-r.Min) / 2
		threshold := int32(deadzone * span)
		if r.Flat > threshold {
			threshold = r.Flat
		}
		c.axes[code] = axisThreshold{
			center:    (r.Max + r.Min) / 2,
			threshold: threshold,
		}
	}

	return c
}

// IsActivity classifies one raw event.
func (c *Classifier) IsActivity(ev *evdev.InputEvent) bool {
	switch ev.Type {
	case evdev.EV_KEY:
		// Press, release, and autorepeat are all state changes the
		// user caused.
		return true

	case evdev.EV_ABS:
		t, ok := c.axes[ev.Code]
		if !ok {
			return false
		}
		delta := ev.Value - t.center
		if delta < 0 {
			delta = -delta
		}
		return delta > t.threshold

	default:
		// EV_SYN frames, EV_MSC scan codes and the rest carry no
		// user intent.
		return false
	}
}

package timeline

import (
	"fmt"
	"math"
)

// GridTick is one second mark on the timeline
type GridTick struct {
	Second int     `json:"second"`
	X      float64 `json:"x"`
	Long   bool    `json:"long"`
	Label  string  `json:"label,omitempty"`
}

// LabelInterval returns how many seconds apart tick labels are drawn for a
// track of the given duration
func LabelInterval(duration float64) int {
	switch {
	case duration < 30:
		return 5
	case duration < 120:
		return 10
	default:
		return 30
	}
}

// FormatTimestamp renders seconds as mm:ss
func FormatTimestamp(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// GridTicks lays out one tick per whole second, long every 5 s, through the
// same TimeToX mapping as the seeker and markers
func GridTicks(state ViewState) []GridTick {
	if state.Duration <= 0 || !finite(state.Duration) {
		return []GridTick{}
	}

	last := int(math.Floor(state.Duration))
	emphasis := LabelInterval(state.Duration)
	ticks := make([]GridTick, 0, last+1)
	for i := 0; i <= last; i++ {
		tick := GridTick{
			Second: i,
			X:      state.TimeToX(float64(i)),
			Long:   i%5 == 0,
		}
		if i%emphasis == 0 {
			tick.Label = FormatTimestamp(i)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

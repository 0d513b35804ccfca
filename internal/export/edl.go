package export

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const defaultFPS = 25

// EDL renders cuts as a CMX3600 edit decision list. Cuts are laid end to end
// on the record timeline in the given order. Timecodes always count whole
// frames at the rounded rate, so NTSC rates are written as non-drop too.
func EDL(cuts []Cut, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = defaultFPS
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	b.WriteString("FCM: NON-DROP FRAME\n\n")

	var record time.Duration
	for i, c := range cuts {
		dur := c.Duration()
		if dur < 0 {
			dur = 0
		}
		recIn := timecode(record, fps)
		recOut := timecode(record+dur, fps)
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n",
			i+1, "AX", "V", timecode(c.Start, fps), timecode(c.Start+dur, fps), recIn, recOut)
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", c.Name)
		if c.Source != "" {
			fmt.Fprintf(&b, "* SOURCE FILE:  %s\n", c.Source)
		}
		record += dur
	}
	return b.String()
}

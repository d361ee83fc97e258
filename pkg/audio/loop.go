package audio

import "github.com/gopxl/beep/v2"

// loopStreamer plays a seekable source and, while looping is on, rewinds it
// to the start whenever it runs dry.
type loopStreamer struct {
	src  beep.StreamSeeker
	loop bool
}

func (l *loopStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		sn, sok := l.src.Stream(samples[n:])
		n += sn
		if sok && sn > 0 {
			continue
		}
		if !l.loop || l.src.Len() == 0 {
			return n, n > 0
		}
		if err := l.src.Seek(0); err != nil {
			return n, n > 0
		}
	}
	return n, true
}

func (l *loopStreamer) Err() error {
	return l.src.Err()
}

package audio

// DownmixStereo averages interleaved stereo frames into mono in place and
// returns the mono prefix of st. A trailing unpaired sample is dropped.
func DownmixStereo(st []int16) []int16 {
	n := len(st) / 2
	for i := range n {
		st[i] = int16((int32(st[2*i]) + int32(st[2*i+1])) >> 1)
	}

	return st[:n]
}

package audio

import (
	"bytes"
	"io"
	"math"

	"github.com/youpy/go-wav"
)

// EncodeWAV writes mono samples as 16-bit PCM.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	ww := wav.NewWriter(w, uint32(len(samples)), 1, uint32(sampleRate), 16)
	const batch = 4096
	buf := make([]wav.Sample, 0, batch)
	for i, v := range samples {
		buf = append(buf, wav.Sample{Values: [2]int{toPCM16(v)}})
		if len(buf) == batch || i == len(samples)-1 {
			if err := ww.WriteSamples(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	return nil
}

// WAVBytes is EncodeWAV into memory, for uploads.
func WAVBytes(samples []float32, sampleRate int) ([]byte, error) {
	var b bytes.Buffer
	if err := EncodeWAV(&b, samples, sampleRate); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func toPCM16(v float32) int {
	f := math.Round(float64(v) * 32767)
	if f > 32767 {
		f = 32767
	}
	if f < -32768 {
		f = -32768
	}
	return int(f)
}

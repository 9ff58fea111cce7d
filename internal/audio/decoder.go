package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/youpy/go-wav"
	"meeting-insights-go/internal/config"
	"meeting-insights-go/internal/logger"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFileNotFound      = errors.New("audio file not found")
	ErrFileTooLarge      = errors.New("audio file too large")
	ErrInvalidAudio      = errors.New("invalid audio")

	// errNeedsConversion marks WAV files go-wav cannot read directly (multichannel, odd encodings).
	errNeedsConversion = errors.New("wav needs conversion")
)

// SupportedFormats lists the file extensions Decode accepts.
var SupportedFormats = []string{".wav", ".mp3", ".m4a", ".ogg", ".flac"}

func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range SupportedFormats {
		if f == ext {
			return true
		}
	}
	return false
}

// Decoder turns an audio file into mono float32 samples at TargetRate.
// WAV is read natively; everything else goes through ffmpeg.
type Decoder struct {
	FFmpegPath   string
	TargetRate   int
	MaxFileBytes int64
	TmpDir       string
	log          *logger.Logger
}

func NewDecoder(cfg config.Audio, log *logger.Logger) *Decoder {
	return &Decoder{
		FFmpegPath:   cfg.FFmpegPath,
		TargetRate:   cfg.SampleRate,
		MaxFileBytes: cfg.MaxFileBytes,
		log:          log.WithComponent("decoder"),
	}
}

// FFmpegAvailable reports whether the configured ffmpeg binary can be found.
func (d *Decoder) FFmpegAvailable() bool {
	if d.FFmpegPath == "" {
		return false
	}
	_, err := exec.LookPath(d.FFmpegPath)
	return err == nil
}

func (d *Decoder) Decode(ctx context.Context, path string) ([]float32, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() || !IsSupported(path) {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if d.MaxFileBytes > 0 && info.Size() > d.MaxFileBytes {
		return nil, 0, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), d.MaxFileBytes)
	}

	log := d.log.WithField("path", path).WithField("size_bytes", info.Size())

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		samples, rate, err := readWAVFile(path)
		switch {
		case err == nil:
			log.WithField("sample_rate", rate).Debug("decoded wav natively")
			return d.conform(samples, rate)
		case !errors.Is(err, errNeedsConversion):
			return nil, 0, err
		}
		log.WithError(err).Info("wav not readable natively, converting with ffmpeg")
	}

	if !d.FFmpegAvailable() {
		return nil, 0, fmt.Errorf("%w: %s requires ffmpeg", ErrUnsupportedFormat, filepath.Ext(path))
	}
	converted, err := d.convert(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	defer os.Remove(converted)

	samples, rate, err := readWAVFile(converted)
	if err != nil {
		return nil, 0, err
	}
	log.WithField("sample_rate", rate).Info("decoded via ffmpeg")
	return d.conform(samples, rate)
}

// convert runs ffmpeg -y -i input -ac 1 -ar <rate> -f wav output
func (d *Decoder) convert(ctx context.Context, path string) (string, error) {
	tmp, err := os.CreateTemp(d.TmpDir, "decode-*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	out := tmp.Name()
	tmp.Close()

	rate := d.TargetRate
	if rate <= 0 {
		rate = 16000
	}
	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-y", "-loglevel", "error", "-i", path,
		"-ac", "1", "-ar", fmt.Sprint(rate),
		"-f", "wav",
		out,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		os.Remove(out)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: ffmpeg: %v: %s", ErrUnsupportedFormat, err, strings.TrimSpace(string(b)))
	}
	return out, nil
}

func (d *Decoder) conform(samples []float32, rate int) ([]float32, int, error) {
	if len(samples) == 0 || rate <= 0 {
		return nil, 0, fmt.Errorf("%w: no samples decoded", ErrInvalidAudio)
	}
	if d.TargetRate > 0 && rate != d.TargetRate {
		samples = Resample(samples, rate, d.TargetRate)
		rate = d.TargetRate
	}
	return samples, rate, nil
}

func readWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadWAV(f)
}

// ReadWAV reads a PCM, IEEE float, A-law or mu-law WAV stream and downmixes it to mono.
func ReadWAV(r interface {
	io.Reader
	io.ReaderAt
}) (samples []float32, rate int, err error) {
	// go-riff panics on truncated headers
	defer func() {
		if p := recover(); p != nil {
			samples, rate, err = nil, 0, fmt.Errorf("%w: corrupt wav: %v", ErrUnsupportedFormat, p)
		}
	}()

	rd := wav.NewReader(r)
	format, err := rd.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 || format.BlockAlign == 0 {
		return nil, 0, fmt.Errorf("%w: malformed wav header", ErrUnsupportedFormat)
	}
	if format.NumChannels > 2 {
		return nil, 0, fmt.Errorf("%w: %d channels", errNeedsConversion, format.NumChannels)
	}
	scale, offset, err := sampleScale(format)
	if err != nil {
		return nil, 0, err
	}

	channels := int(format.NumChannels)
	var out []float32
	for {
		batch, rerr := rd.ReadSamples(4096)
		for _, s := range batch {
			var sum float64
			for c := 0; c < channels; c++ {
				sum += (float64(s.Values[c]) - offset) / scale
			}
			out = append(out, float32(sum/float64(channels)))
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, 0, fmt.Errorf("%w: read samples: %v", ErrUnsupportedFormat, rerr)
		}
	}
	return out, int(format.SampleRate), nil
}

// sampleScale maps go-wav integer sample values to [-1, 1].
func sampleScale(format *wav.WavFormat) (scale, offset float64, err error) {
	switch format.AudioFormat {
	case wav.AudioFormatIEEEFloat:
		if format.BitsPerSample != 32 {
			return 0, 0, fmt.Errorf("%w: %d-bit float", errNeedsConversion, format.BitsPerSample)
		}
		return 2147483647, 0, nil
	case wav.AudioFormatALaw, wav.AudioFormatMULaw:
		return 32768, 0, nil
	case wav.AudioFormatPCM:
		switch format.BitsPerSample {
		case 8:
			// 8-bit PCM is unsigned
			return 128, 128, nil
		case 16, 24, 32:
			return float64(uint64(1) << (format.BitsPerSample - 1)), 0, nil
		}
		return 0, 0, fmt.Errorf("%w: %d-bit pcm", errNeedsConversion, format.BitsPerSample)
	}
	return 0, 0, fmt.Errorf("%w: wav encoding %d", errNeedsConversion, format.AudioFormat)
}

// Resample converts between sample rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}
	n := int(int64(len(samples)) * int64(to) / int64(from))
	if n == 0 {
		n = 1
	}
	out := make([]float32, n)
	ratio := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

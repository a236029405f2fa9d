package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when a file is not a readable PCM WAV file.
var ErrInvalidWAV = errors.New("not a valid PCM WAV file")

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

// ReadWAV decodes a PCM WAV file into a Signal.
func ReadWAV(path string) (*Signal, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm buffer: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: missing format in %s", ErrInvalidWAV, path)
	}

	sig := &Signal{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   buf.SourceBitDepth,
		Samples:    buf.Data,
	}
	if err := sig.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}
	return sig, nil
}

// WriteWAV writes the whole signal to path as a PCM WAV file.
// The file appears at path only once it is complete.
func WriteWAV(path string, sig *Signal) error {
	if err := sig.validate(); err != nil {
		return err
	}
	return writeWAVSpan(path, sig, Span{Start: 0, End: sig.Frames()})
}

// writeWAVSpan encodes the frames of span into a temporary file next to path
// and renames it into place.
func writeWAVSpan(path string, sig *Signal, span Span) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return err
	}

	enc := wav.NewEncoder(f, sig.SampleRate, sig.BitDepth, sig.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: sig.Channels,
			SampleRate:  sig.SampleRate,
		},
		Data:           sig.Slice(span.Start, span.End),
		SourceBitDepth: sig.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fail(fmt.Errorf("encode wav: %w", err))
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("finalize wav: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename wav: %w", err)
	}
	return nil
}

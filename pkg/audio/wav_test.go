package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/vocero-ai/vocero/pkg/audio"
)

func TestPCMToWAV_Mono16k(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 320) // 10ms of mono 16kHz PCM16
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav := audio.PCMToWAV(pcm, 16000, 1)

	if len(wav) != len(pcm)+44 {
		t.Fatalf("container length = %d, want %d", len(wav), len(pcm)+44)
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) {
		t.Errorf("missing RIFF marker: %q", wav[0:4])
	}
	if !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Errorf("missing WAVE marker: %q", wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("RIFF chunk size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("format tag = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 2 {
		t.Errorf("block align = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bit depth = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", got, len(pcm))
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("sample data was not copied verbatim")
	}
}

func TestPCMToWAV_StereoByteRate(t *testing.T) {
	t.Parallel()

	wav := audio.PCMToWAV(make([]byte, 96), 24000, 2)

	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 96000 {
		t.Errorf("byte rate = %d, want 96000", got)
	}
	if got := binary.LittleEndian.Uint16(wav[32:34]); got != 4 {
		t.Errorf("block align = %d, want 4", got)
	}
}

func TestPCMToWAV_EmptyInput(t *testing.T) {
	t.Parallel()

	wav := audio.PCMToWAV(nil, 8000, 1)

	if len(wav) != 44 {
		t.Fatalf("container length = %d, want 44", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("data length = %d, want 0", got)
	}
}

func TestPCMToWAV_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 2, 3, 4}
	wav := audio.PCMToWAV(pcm, 8000, 1)
	wav[44] = 0xFF

	if pcm[0] != 1 {
		t.Error("modifying the container mutated the input slice")
	}
}

// Package audio provides the audio plumbing shared by the call bridge:
// telephony codec constants and the PCM16 → WAV container transcoder used
// when synthesized speech is forwarded to a listener that expects a
// self-describing file rather than a raw codec stream.
package audio

import "encoding/binary"

// Telephony and model-side audio formats exchanged over the realtime sockets.
const (
	// FormatG711ULaw is the 8kHz μ-law codec used by the telephony media stream.
	FormatG711ULaw = "g711_ulaw"

	// FormatPCM16 is raw little-endian 16-bit PCM, used on the testbench path.
	FormatPCM16 = "pcm16"
)

// ModelSampleRate is the PCM16 output rate of the realtime speech model.
const ModelSampleRate = 24000

// wavHeaderSize is the size of the canonical RIFF/WAVE header produced by
// [PCMToWAV]: RIFF chunk descriptor (12) + fmt chunk (24) + data chunk
// header (8).
const wavHeaderSize = 44

// PCMToWAV prepends a canonical 44-byte WAV header to raw little-endian
// PCM16 samples. The result is a complete, self-describing mono/stereo
// 16-bit WAV file. Pure and deterministic; the input slice is not modified.
func PCMToWAV(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))

	copy(out[wavHeaderSize:], pcm)
	return out
}

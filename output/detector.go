package output

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/lixenwraith/wavetone/constant"
)

// PlayerType identifies the external player behind a pipe sink
type PlayerType int

const (
	PlayerPulse PlayerType = iota
	PlayerPipeWire
	PlayerALSA
	PlayerSoX
	PlayerFFplay
	PlayerOSS
)

// PlayerConfig describes a CLI audio player fed raw s16le mono on stdin
type PlayerConfig struct {
	Type PlayerType
	Name string
	Path string
	Args []string
}

// playerCandidate is a player binary and its argument builder
type playerCandidate struct {
	typ  PlayerType
	name string
	bin  string
	args func(rate int) []string
}

// Priority: pacat > pw-cat > aplay > play (sox) > ffplay > OSS
var playerCandidates = []playerCandidate{
	{PlayerPulse, "pacat", "pacat", pulseArgs},
	{PlayerPipeWire, "pw-cat", "pw-cat", pipeWireArgs},
	{PlayerALSA, "aplay", "aplay", alsaArgs},
	{PlayerSoX, "sox", "play", soxArgs},
	{PlayerFFplay, "ffplay", "ffplay", ffplayArgs},
}

// lookPath is exec.LookPath; replaced in tests
var lookPath = exec.LookPath

// DetectPlayer searches PATH for an external player at rate
func DetectPlayer(rate int) (*PlayerConfig, error) {
	for _, c := range playerCandidates {
		if path, err := lookPath(c.bin); err == nil {
			return &PlayerConfig{
				Type: c.typ,
				Name: c.name,
				Path: path,
				Args: c.args(rate),
			}, nil
		}
	}

	// FreeBSD OSS (direct device write, no exec needed)
	if runtime.GOOS == "freebsd" {
		if _, err := os.Stat("/dev/dsp"); err == nil {
			return &PlayerConfig{
				Type: PlayerOSS,
				Name: "oss",
				Path: "/dev/dsp",
			}, nil
		}
	}

	return nil, ErrNoAudioBackend
}

func pulseArgs(rate int) []string {
	return []string{
		"--raw",
		"--format=s16le",
		"--rate=" + strconv.Itoa(rate),
		"--channels=" + strconv.Itoa(constant.AudioChannels),
		"--latency-msec=" + strconv.FormatInt(constant.AudioBufferDuration.Milliseconds(), 10),
		"--playback",
	}
}

func pipeWireArgs(rate int) []string {
	return []string{
		"--playback",
		"--format=s16",
		"--rate=" + strconv.Itoa(rate),
		"--channels=" + strconv.Itoa(constant.AudioChannels),
		"--latency=" + constant.AudioBufferDuration.String(),
		"-",
	}
}

func alsaArgs(rate int) []string {
	return []string{
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.Itoa(rate),
		"-c", strconv.Itoa(constant.AudioChannels),
		"-q",
	}
}

func soxArgs(rate int) []string {
	return []string{
		"-t", "raw",
		"-e", "signed",
		"-b", strconv.Itoa(constant.AudioBitDepth),
		"-c", strconv.Itoa(constant.AudioChannels),
		"-r", strconv.Itoa(rate),
		"-",
		"-d",
		"-q",
	}
}

func ffplayArgs(rate int) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ac", strconv.Itoa(constant.AudioChannels),
		"-ar", strconv.Itoa(rate),
		"-probesize", "32",
		"-analyzeduration", "0",
		"-i", "pipe:0",
		"-loglevel", "quiet",
	}
}

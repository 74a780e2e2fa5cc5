package narration

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandEngine speaks through an espeak-ng compatible command line tool.
type CommandEngine struct {
	bin string
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewCommandEngine(bin string) *CommandEngine {
	if strings.TrimSpace(bin) == "" {
		bin = "espeak-ng"
	}
	return &CommandEngine{bin: bin, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Available reports whether the binary is on PATH.
func (e *CommandEngine) Available() bool {
	_, err := exec.LookPath(e.bin)
	return err == nil
}

func (e *CommandEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := e.run(ctx, e.bin, "--voices")
	if err != nil {
		return nil, fmt.Errorf("%s --voices: %w", e.bin, err)
	}
	return parseVoiceList(out), nil
}

func (e *CommandEngine) Say(ctx context.Context, voice *Voice, text string) error {
	var args []string
	if voice != nil && voice.ID != "" {
		args = append(args, "-v", voice.ID)
	}
	args = append(args, "--", text)

	if _, err := e.run(ctx, e.bin, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", e.bin, err)
	}
	return nil
}

// parseVoiceList reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US
func parseVoiceList(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{
			ID:     fields[1],
			Name:   fields[3],
			Locale: fields[1],
		})
	}
	return voices
}

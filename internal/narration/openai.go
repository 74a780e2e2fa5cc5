package narration

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// AudioPlayer plays raw PCM until done or ctx is cancelled.
type AudioPlayer interface {
	Play(ctx context.Context, pcm []byte) error
}

// OpenAIOption configures the OpenAI engine.
type OpenAIOption func(*openaiOptions)

type openaiOptions struct {
	baseURL string
}

func WithBaseURL(url string) OpenAIOption {
	return func(o *openaiOptions) {
		o.baseURL = url
	}
}

// openaiVoices is the hosted voice catalog. Every voice is synthesized
// server-side, so each name carries the network marker.
var openaiVoices = []Voice{
	{ID: string(openai.VoiceAlloy), Name: "openai-alloy-network", Locale: "en-US", Quality: 400},
	{ID: string(openai.VoiceNova), Name: "openai-nova-network", Locale: "en-US", Quality: 400},
	{ID: string(openai.VoiceShimmer), Name: "openai-shimmer-network", Locale: "en-US", Quality: 400},
	{ID: string(openai.VoiceEcho), Name: "openai-echo-network", Locale: "en-US", Quality: 300},
	{ID: string(openai.VoiceFable), Name: "openai-fable-network", Locale: "en-GB", Quality: 300},
	{ID: string(openai.VoiceOnyx), Name: "openai-onyx-network", Locale: "en-US", Quality: 300},
}

// OpenAIEngine synthesizes speech with the OpenAI audio API and plays it locally.
type OpenAIEngine struct {
	client *openai.Client
	model  string
	player AudioPlayer
}

func NewOpenAIEngine(apiKey, model string, player AudioPlayer, opts ...OpenAIOption) *OpenAIEngine {
	o := &openaiOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAIEngine{client: openai.NewClientWithConfig(config), model: model, player: player}
}

func (e *OpenAIEngine) Voices(context.Context) ([]Voice, error) {
	return append([]Voice(nil), openaiVoices...), nil
}

func (e *OpenAIEngine) Say(ctx context.Context, voice *Voice, text string) error {
	voiceID := string(openai.VoiceAlloy)
	if voice != nil && voice.ID != "" {
		voiceID = voice.ID
	}

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	wav, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("read speech audio: %w", err)
	}

	pcm, err := pcmFromWAV(wav)
	if err != nil {
		return fmt.Errorf("decode speech audio: %w", err)
	}

	if e.player == nil {
		return nil
	}
	return e.player.Play(ctx, pcm)
}

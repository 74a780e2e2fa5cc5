package narration

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"

// ErrNoAudio is returned when a synthesis response carries no audio parts.
var ErrNoAudio = errors.New("no audio in response")

// GeminiOption configures the Gemini engine.
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	baseURL string
}

func WithGeminiBaseURL(url string) GeminiOption {
	return func(o *geminiOptions) {
		o.baseURL = url
	}
}

// geminiVoices are prebuilt voices. The model infers the spoken language
// from the text, so the locale only steers selection.
var geminiVoices = []Voice{
	{ID: "Kore", Name: "gemini-kore-network", Locale: "en-US", Quality: 400},
	{ID: "Aoede", Name: "gemini-aoede-network", Locale: "en-US", Quality: 400},
	{ID: "Puck", Name: "gemini-puck-network", Locale: "en-US", Quality: 300},
	{ID: "Charon", Name: "gemini-charon-network", Locale: "en-US", Quality: 300},
	{ID: "Leda", Name: "gemini-leda-network", Locale: "en-GB", Quality: 300},
}

// GeminiEngine synthesizes speech with the Gemini TTS models. Responses are
// 24kHz mono PCM and go straight to the player.
type GeminiEngine struct {
	client *genai.Client
	model  string
	player AudioPlayer
}

func NewGeminiEngine(apiKey, model string, player AudioPlayer, opts ...GeminiOption) (*GeminiEngine, error) {
	o := &geminiOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if o.baseURL != "" {
		config.HTTPOptions.BaseURL = o.baseURL
	}
	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	if model == "" {
		model = defaultGeminiTTSModel
	}
	return &GeminiEngine{client: client, model: model, player: player}, nil
}

func (e *GeminiEngine) Voices(context.Context) ([]Voice, error) {
	return append([]Voice(nil), geminiVoices...), nil
}

func (e *GeminiEngine) Say(ctx context.Context, voice *Voice, text string) error {
	voiceName := geminiVoices[0].ID
	if voice != nil && voice.ID != "" {
		voiceName = voice.ID
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voiceName},
			},
		},
	}
	result, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return fmt.Errorf("gemini speech: %w", err)
	}

	pcm := geminiAudio(result)
	if len(pcm) == 0 {
		return fmt.Errorf("gemini speech: %w", ErrNoAudio)
	}

	if e.player == nil {
		return nil
	}
	return e.player.Play(ctx, pcm)
}

func geminiAudio(result *genai.GenerateContentResponse) []byte {
	var pcm []byte
	if result == nil {
		return nil
	}
	for _, cand := range result.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil {
				pcm = append(pcm, part.InlineData.Data...)
			}
		}
		if len(pcm) > 0 {
			break
		}
	}
	return pcm
}

// Package speech provides the text-to-speech collaborator: plain text in, a
// playable data-URI out.
package speech

import (
	"context"
	"encoding/base64"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// Service synthesizes speech through the Google Cloud Text-to-Speech API.
type Service struct {
	client   *texttospeech.Client
	language string
	voice    string
}

func New(ctx context.Context, language, voice string) (*Service, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create tts client: %w", err)
	}
	return &Service{client: client, language: language, voice: voice}, nil
}

// Speak synthesizes text and returns the audio as an MP3 data URI.
func (s *Service) Speak(ctx context.Context, text string) (string, error) {
	resp, err := s.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.language,
			Name:         s.voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	if len(resp.AudioContent) == 0 {
		return "", fmt.Errorf("synthesize speech: empty audio")
	}
	return "data:audio/mp3;base64," + base64.StdEncoding.EncodeToString(resp.AudioContent), nil
}

func (s *Service) Close() error {
	return s.client.Close()
}

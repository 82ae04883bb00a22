// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"tablecast/internal/transcribe"
)

// ErrNoResults is returned when recognition produced no alternatives.
var ErrNoResults = errors.New("recognition returned no results")

// Adapter implements transcribe.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client       *speech.Client
	languageCode string
	sampleRateHz int
}

// New creates a new Google adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, languageCode string, sampleRateHz int) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:       c,
		languageCode: languageCode,
		sampleRateHz: sampleRateHz,
	}, nil
}

// Transcribe sends the segment through a single Recognize call and returns
// the top alternative of the first result.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (transcribe.Result, error) {
	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(a.sampleRateHz),
			LanguageCode:    a.languageCode,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return transcribe.Result{}, err
	}

	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		return transcribe.Result{
			Text:       alt.Transcript,
			Confidence: float64(alt.Confidence),
		}, nil
	}
	return transcribe.Result{}, ErrNoResults
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

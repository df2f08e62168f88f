package speech

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI synthesizes speech with the OpenAI audio API, streamed as MP3.
type OpenAI struct {
	client openai.Client
	model  string
	voice  string
}

func NewOpenAI(apiKey string, httpClient *http.Client, model, voice string, opts ...option.RequestOption) *OpenAI {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		voice:  voice,
	}
}

func (o *OpenAI) Open(ctx context.Context, text string) (*Clip, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return &Clip{Body: resp.Body, ContentType: ct}, nil
}

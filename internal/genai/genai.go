// Package genai provides chat completion and audio transcription on top of the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Default model parameters.
const (
	DefaultModel              = openai.ChatModelGPT4oMini
	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 500
	DefaultTranscriptionModel = openai.AudioModelWhisper1
	DefaultLanguage           = "pt"
	// maxAudioBytes bounds downloaded voice notes (Whisper accepts up to 25 MB).
	maxAudioBytes = 25 << 20
)

// ErrNoChoicesReturned is returned when the API answers without any choice.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// transcriptionService defines minimal interface for audio transcription.
type transcriptionService interface {
	Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (string, error)
}

// openAIChat adapts the SDK completion service to chatService.
type openAIChat struct {
	svc *openai.ChatCompletionService
}

func (o openAIChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// openAITranscriber adapts the SDK transcription service to transcriptionService.
type openAITranscriber struct {
	svc *openai.AudioTranscriptionService
}

func (o openAITranscriber) Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (string, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Message is one chat turn sent to the model.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// CompletionOptions tunes a single completion call. A negative Temperature or
// a non-positive MaxTokens selects the client default.
type CompletionOptions struct {
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

// Client wraps the OpenAI chat and transcription services.
type Client struct {
	chat        chatService
	audio       transcriptionService
	httpClient  *http.Client
	model       string
	temperature float64
	maxTokens   int
	language    string
	debugMode   bool
	stateDir    string
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Language    string
	DebugMode   bool
	StateDir    string
	HTTPClient  *http.Client
}

// Option defines a function for configuring the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens sets the default completion token cap.
func WithMaxTokens(n int) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// WithLanguage sets the transcription language hint.
func WithLanguage(lang string) Option {
	return func(o *Opts) { o.Language = lang }
}

// WithDebugMode writes every request and response to {stateDir}/debug.
func WithDebugMode(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

// WithHTTPClient sets the client used to download audio files.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// NewClient initializes a new GenAI client. The API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       string(DefaultModel),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Language:    DefaultLanguage,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Error("genai.NewClient: API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client created", "model", cfg.Model, "debug", cfg.DebugMode)
	return &Client{
		chat:        openAIChat{svc: &cli.Chat.Completions},
		audio:       openAITranscriber{svc: &cli.Audio.Transcriptions},
		httpClient:  cfg.HTTPClient,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		language:    cfg.Language,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Complete runs a chat completion with a system prompt and the given turns.
func (c *Client) Complete(ctx context.Context, systemPrompt string, msgs []Message, opts CompletionOptions) (string, error) {
	params := c.buildParams(systemPrompt, msgs, opts)
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Warn("genai.Complete: completion failed", "model", c.model, "error", err)
		c.writeDebug("Complete", params, nil, err)
		return "", err
	}
	c.writeDebug("Complete", params, &resp, nil)
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("genai.Complete: completion received", "model", c.model, "json", opts.JSONMode, "chars", len(out))
	return out, nil
}

func (c *Client) buildParams(systemPrompt string, msgs []Message, opts CompletionOptions) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	temperature := opts.Temperature
	if temperature < 0 {
		temperature = c.temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            messages,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// Transcribe downloads the audio at url and returns its transcription.
func (c *Client) Transcribe(ctx context.Context, url, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build audio request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download audio: status %d", resp.StatusCode)
	}
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	if contentType == "" {
		contentType = "audio/ogg"
	}
	return c.TranscribeReader(ctx, io.LimitReader(resp.Body, maxAudioBytes), contentType)
}

// TranscribeReader transcribes audio read from r.
func (c *Client) TranscribeReader(ctx context.Context, r io.Reader, contentType string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:     openai.File(r, "audio"+audioExtension(contentType), contentType),
		Model:    DefaultTranscriptionModel,
		Language: openai.String(c.language),
	}
	text, err := c.audio.Transcribe(ctx, params)
	if err != nil {
		slog.Warn("genai.Transcribe: transcription failed", "error", err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty transcription")
	}
	slog.Debug("genai.Transcribe: transcription received", "chars", len(text))
	return text, nil
}

func audioExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "mpeg"), strings.Contains(contentType, "mp3"):
		return ".mp3"
	case strings.Contains(contentType, "mp4"), strings.Contains(contentType, "m4a"):
		return ".m4a"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "webm"):
		return ".webm"
	default:
		return ".ogg"
	}
}

// writeDebug persists one call to {stateDir}/debug when debug mode is on.
func (c *Client) writeDebug(method string, params openai.ChatCompletionNewParams, resp *openai.ChatCompletion, callErr error) {
	if !c.debugMode || c.stateDir == "" {
		return
	}
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("genai.writeDebug: cannot create debug dir", "dir", dir, "error", err)
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"method":    method,
		"model":     c.model,
		"params":    params,
		"response":  resp,
	}
	if callErr != nil {
		entry["error"] = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.writeDebug: marshal failed", "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s.json", time.Now().Format("20060102T150405.000000000"), method)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		slog.Warn("genai.writeDebug: write failed", "error", err)
	}
}

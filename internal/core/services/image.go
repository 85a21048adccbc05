package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const visionPrompt = `You are an expert at analyzing images to create music playlists.

Rules:
1. If you see a recognizable person or artist, build the playlist around their music or similar artists.
2. If you see a visual theme (dark imagery, a concert, a beach), match it with fitting genres.
3. Otherwise match the music to the atmosphere of the scene.

Return a JSON object with:
- detected_person: name of the person or artist, or null
- visual_theme: what you see
- mood: primary emotional tone
- energy_level: 0 to 1
- valence: 0 to 1
- suggested_genres: array of genres
- playlist_prompt: a detailed playlist request naming specific artists and song titles, for example "Pharrell Williams (Happy), Justin Timberlake (Can't Stop the Feeling), Mark Ronson (Uptown Funk)"

Be specific with artist names and song titles. Respond with JSON only.`

const (
	visionMaxTokens   = 800
	visionTemperature = 0.5
)

// ImageInput is the caller-facing request for an image playlist.
type ImageInput struct {
	OwnerID      string
	ImageBase64  string
	ImageURL     string
	DesiredCount int
	SearchAuth   oauth2.TokenSource
}

// ImageOutput extends the prompt payload with what the vision model saw.
type ImageOutput struct {
	GenerateOutput
	Analysis        domain.MoodAnalysis `json:"mood_analysis"`
	GeneratedPrompt string              `json:"generated_prompt"`
}

// ImageFlow reads a mood from an image and runs the playlist pipeline on it.
type ImageFlow struct {
	orchestrator *Orchestrator
	invoker      *Invoker
	fetcher      ports.ImageFetcher
	visionModel  string
	maxRetries   int
	logger       *log.Logger
}

// NewImageFlow returns an ImageFlow using visionModel for analysis.
func NewImageFlow(orchestrator *Orchestrator, invoker *Invoker, fetcher ports.ImageFetcher, visionModel string, maxRetries int, logger *log.Logger) *ImageFlow {
	return &ImageFlow{
		orchestrator: orchestrator,
		invoker:      invoker,
		fetcher:      fetcher,
		visionModel:  visionModel,
		maxRetries:   maxRetries,
		logger:       logging.Component(logger, "image", "model", visionModel),
	}
}

// Generate analyses the image and creates a playlist from the derived prompt.
func (f *ImageFlow) Generate(ctx context.Context, in ImageInput) (ImageOutput, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return ImageOutput{}, &domain.InputError{Field: "user_id"}
	}
	if in.SearchAuth == nil {
		return ImageOutput{}, &domain.InputError{Field: "spotify_access_token"}
	}
	if in.ImageBase64 == "" && in.ImageURL == "" {
		return ImageOutput{}, &domain.InputError{Field: "image_data or image_url"}
	}

	analysis := f.Analyze(ctx, in.ImageBase64, in.ImageURL)
	prompt := analysis.PlaylistPrompt

	req, err := domain.NewInterpretationRequest(prompt, in.DesiredCount)
	if err != nil {
		return ImageOutput{}, err
	}

	out, err := f.orchestrator.run(ctx, pipelineRun{
		ownerID: in.OwnerID,
		request: req,
		auth:    in.SearchAuth,
		extra: map[string]any{
			"source":           "image_analysis",
			"mood_analysis":    analysis,
			"generated_prompt": prompt,
		},
		fallbackName: fmt.Sprintf("AI DJ - %s Mix", analysis.Mood),
	})
	if err != nil {
		return ImageOutput{Analysis: analysis, GeneratedPrompt: prompt}, err
	}

	out.ModelID = fmt.Sprintf("%s + %s", f.visionModel, out.ModelID)
	return ImageOutput{GenerateOutput: out, Analysis: analysis, GeneratedPrompt: prompt}, nil
}

// Analyze asks the vision model to describe the image. It never fails: any
// problem yields the default analysis with Error set.
func (f *ImageFlow) Analyze(ctx context.Context, imageBase64, imageURL string) domain.MoodAnalysis {
	data, err := f.loadImage(ctx, imageBase64, imageURL)
	if err != nil {
		return f.degraded(err)
	}

	format := domain.DetectImageFormat(data)
	raw, err := f.invoker.Invoke(ctx, f.visionModel, ports.CompletionRequest{
		Messages:    []ports.Message{{Role: domain.RoleUser, Content: visionPrompt}},
		Images:      []ports.Image{{Format: format.Format, Base64: data}},
		MaxTokens:   visionMaxTokens,
		Temperature: visionTemperature,
	}, f.maxRetries)
	if err != nil {
		return f.degraded(err)
	}

	var obj map[string]any
	if !ExtractJSONObject(raw, &obj) {
		f.logger.Warn("vision output was not JSON, using default analysis")
		return domain.DefaultMoodAnalysis()
	}
	return moodFromObject(obj)
}

// moodFromObject reads each field on its own so one mistyped value only
// falls back for that field.
func moodFromObject(obj map[string]any) domain.MoodAnalysis {
	def := domain.DefaultMoodAnalysis()
	analysis := domain.MoodAnalysis{
		VisualTheme:     stringField(obj, "visual_theme"),
		Mood:            stringField(obj, "mood"),
		EnergyLevel:     def.EnergyLevel,
		Valence:         def.Valence,
		SuggestedGenres: listField(obj, "suggested_genres"),
		PlaylistPrompt:  stringField(obj, "playlist_prompt"),
	}
	if person, ok := obj["detected_person"].(string); ok && strings.TrimSpace(person) != "" && !strings.EqualFold(person, "null") {
		person = strings.TrimSpace(person)
		analysis.DetectedPerson = &person
	}
	if v, ok := floatField(obj, "energy_level"); ok {
		analysis.EnergyLevel = v
	}
	if v, ok := floatField(obj, "valence"); ok {
		analysis.Valence = v
	}
	return analysis.FillDefaults()
}

func (f *ImageFlow) loadImage(ctx context.Context, imageBase64, imageURL string) (string, error) {
	if imageURL != "" {
		if f.fetcher == nil {
			return "", errors.New("image fetching not configured")
		}
		b, err := f.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			return "", fmt.Errorf("service: fetch image: %w", err)
		}
		return base64.StdEncoding.EncodeToString(b), nil
	}
	// Data URLs carry a header before the payload.
	if _, payload, ok := strings.Cut(imageBase64, ";base64,"); ok {
		return payload, nil
	}
	return imageBase64, nil
}

func (f *ImageFlow) degraded(err error) domain.MoodAnalysis {
	f.logger.Warn("image analysis failed, using default analysis", "err", err)
	analysis := domain.DefaultMoodAnalysis()
	analysis.Error = err.Error()
	return analysis
}

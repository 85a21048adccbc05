package domain

import (
	"strings"
	"time"
)

// MoodAnalysis is what the vision model reads from an image.
type MoodAnalysis struct {
	DetectedPerson  *string  `json:"detected_person"`
	VisualTheme     string   `json:"visual_theme"`
	Mood            string   `json:"mood"`
	EnergyLevel     float64  `json:"energy_level"`
	Valence         float64  `json:"valence"`
	SuggestedGenres []string `json:"suggested_genres"`
	PlaylistPrompt  string   `json:"playlist_prompt"`
	Error           string   `json:"error,omitempty"`
}

// DefaultMoodAnalysis is used when the image cannot be analysed.
func DefaultMoodAnalysis() MoodAnalysis {
	return MoodAnalysis{
		VisualTheme:     "Unknown",
		Mood:            "energetic",
		EnergyLevel:     0.7,
		Valence:         0.7,
		SuggestedGenres: []string{"pop", "rock"},
		PlaylistPrompt:  "Energetic and upbeat music",
	}
}

// FillDefaults replaces blank fields with the defaults.
func (m MoodAnalysis) FillDefaults() MoodAnalysis {
	def := DefaultMoodAnalysis()
	if strings.TrimSpace(m.PlaylistPrompt) == "" {
		m.PlaylistPrompt = def.PlaylistPrompt
	}
	if m.Mood == "" {
		m.Mood = def.Mood
	}
	if m.VisualTheme == "" {
		m.VisualTheme = def.VisualTheme
	}
	if len(m.SuggestedGenres) == 0 {
		m.SuggestedGenres = def.SuggestedGenres
	}
	return m
}

// ImageFormat is a vision payload format plus its media type.
type ImageFormat struct {
	Format    string
	MediaType string
}

var imagePrefixes = []struct {
	prefix string
	format ImageFormat
}{
	{"/9j/", ImageFormat{"jpeg", "image/jpeg"}},
	{"iVBORw", ImageFormat{"png", "image/png"}},
	{"R0lG", ImageFormat{"gif", "image/gif"}},
	{"UklGR", ImageFormat{"webp", "image/webp"}},
}

// DetectImageFormat inspects the base64 magic prefix; unknown data is treated as jpeg.
func DetectImageFormat(b64 string) ImageFormat {
	for _, p := range imagePrefixes {
		if strings.HasPrefix(b64, p.prefix) {
			return p.format
		}
	}
	return imagePrefixes[0].format
}

// KnowledgeAnswer is the structured reply to a music question.
type KnowledgeAnswer struct {
	Answer      string    `json:"answer"`
	Context     string    `json:"context"`
	Examples    []string  `json:"examples"`
	Suggestions []string  `json:"suggestions"`
	SourceType  string    `json:"source_type"`
	ModelUsed   string    `json:"model_used"`
	Timestamp   time.Time `json:"timestamp"`
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	rediscache "entrevia/internal/utils/redis"
)

type TTSConfig struct {
	Format   string
	CacheTTL time.Duration
}

func ReadTTSConfig() *TTSConfig {
	v := viper.New()
	v.SetDefault("TTS_FORMAT", "mp3")
	v.SetDefault("TTS_CACHE_TTL_HOURS", 24)
	_ = v.BindEnv("TTS_FORMAT")
	_ = v.BindEnv("TTS_CACHE_TTL_HOURS")

	return &TTSConfig{
		Format:   v.GetString("TTS_FORMAT"),
		CacheTTL: time.Duration(v.GetInt("TTS_CACHE_TTL_HOURS")) * time.Hour,
	}
}

// Speaker is the speech backend, satisfied by the OpenAI client.
type Speaker interface {
	Speech(ctx context.Context, text, voice, format string) ([]byte, error)
}

// Synthesizer produces question audio, caching rendered clips so repeated
// playback of the same text does not hit the upstream again.
type Synthesizer struct {
	config  *TTSConfig
	speaker Speaker
	cache   *rediscache.Cache
}

func NewSynthesizer(config *TTSConfig, speaker Speaker, cache *rediscache.Cache) *Synthesizer {
	return &Synthesizer{config: config, speaker: speaker, cache: cache}
}

func MimeTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "wav":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

func (s *Synthesizer) cacheKey(text, language, voice string) string {
	sum := sha256.Sum256([]byte(s.config.Format + "|" + language + "|" + voice + "|" + text))
	return "tts:" + hex.EncodeToString(sum[:])
}

// Synthesize returns the audio bytes and mime type for the given text.
// Clips are cached per (text, language, voice) combination.
func (s *Synthesizer) Synthesize(ctx context.Context, text, language, voice string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", errors.New("empty text")
	}

	mimeType := MimeTypeFor(s.config.Format)
	key := s.cacheKey(text, language, voice)
	if data, err := s.cache.GetBytes(ctx, key); err == nil {
		return data, mimeType, nil
	}

	data, err := s.speaker.Speech(ctx, text, voice, s.config.Format)
	if err != nil {
		return nil, "", err
	}

	_ = s.cache.SetBytes(ctx, key, data, s.config.CacheTTL)
	return data, mimeType, nil
}

// Prewarm renders a clip into the cache without returning it, used by the
// background pool right after a plan is generated.
func (s *Synthesizer) Prewarm(ctx context.Context, text, language, voice string) error {
	_, _, err := s.Synthesize(ctx, text, language, voice)
	return err
}

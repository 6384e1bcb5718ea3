package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "entrevia/internal/utils/redis"
)

type stubSpeaker struct {
	called int
}

func (s *stubSpeaker) Speech(ctx context.Context, text, voice, format string) ([]byte, error) {
	s.called++
	return []byte("audio:" + text), nil
}

func newTestSynthesizer(t *testing.T, speaker Speaker) *Synthesizer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSynthesizer(
		&TTSConfig{Format: "mp3", CacheTTL: time.Hour},
		speaker,
		rediscache.NewCache(client, "entrevia"),
	)
}

func TestSynthesizeCachesClips(t *testing.T) {
	speaker := &stubSpeaker{}
	synth := newTestSynthesizer(t, speaker)
	ctx := context.Background()

	data, mimeType, err := synth.Synthesize(ctx, "Tell me about yourself", "en", "alloy")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", mimeType)
	assert.Equal(t, []byte("audio:Tell me about yourself"), data)

	_, _, err = synth.Synthesize(ctx, "Tell me about yourself", "en", "alloy")
	require.NoError(t, err)
	assert.Equal(t, 1, speaker.called)

	// Same text in another language is a distinct cache entry.
	_, _, err = synth.Synthesize(ctx, "Tell me about yourself", "pt-BR", "alloy")
	require.NoError(t, err)
	assert.Equal(t, 2, speaker.called)
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	synth := newTestSynthesizer(t, &stubSpeaker{})
	_, _, err := synth.Synthesize(context.Background(), "   ", "pt-BR", "")
	assert.Error(t, err)
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MimeTypeFor("mp3"))
	assert.Equal(t, "audio/wav", MimeTypeFor("wav"))
	assert.Equal(t, "audio/ogg", MimeTypeFor("ogg"))
	assert.Equal(t, "audio/ogg", MimeTypeFor("opus"))
	assert.Equal(t, "audio/mpeg", MimeTypeFor("anything-else"))
}

package podcast

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/upstream"
)

// Endpoint is the label used for podcast logs and metrics
const Endpoint = "podcast"

const (
	ttsPath          = "/v1/text-to-speech/" + upstream.VoiceIDPlaceholder
	ttsOutputFormat  = "mp3_44100_128"
	audioContentType = "audio/mpeg"
)

// Ensure Synthesizer implements interfaces.Synthesizer
var _ interfaces.Synthesizer = (*Synthesizer)(nil)

var validate = validator.New()

// Options wires a Synthesizer
type Options struct {
	Cache    interfaces.Cache
	Upstream interfaces.FallbackCaller
	// Targets are the voices tried in order for every segment
	Targets []models.Target
	// SpeakerVoices maps a speaker name to a preferred voice id
	SpeakerVoices   map[string]string
	MaxChars        int
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	// Timeout bounds one TTS attempt for one segment
	Timeout time.Duration
}

// Synthesizer renders podcast scripts with ElevenLabs text-to-speech. Each
// segment is synthesized in order with voice fallback and the MP3 parts are
// concatenated.
type Synthesizer struct {
	opts   Options
	group  singleflight.Group
	logger *zap.Logger
}

type ttsRequest struct {
	Text          string           `json:"text"`
	ModelID       string           `json:"model_id"`
	VoiceSettings ttsVoiceSettings `json:"voice_settings"`
}

type ttsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// segmentPlan is a segment ready to send
type segmentPlan struct {
	text    string
	targets []models.Target
}

// NewSynthesizer creates a new Synthesizer
func NewSynthesizer(opts Options, logger *zap.Logger) *Synthesizer {
	voices := make(map[string]string, len(opts.SpeakerVoices))
	for speaker, voice := range opts.SpeakerVoices {
		voices[strings.ToLower(strings.TrimSpace(speaker))] = voice
	}
	opts.SpeakerVoices = voices

	return &Synthesizer{
		opts:   opts,
		logger: logger.With(zap.String("endpoint", Endpoint)),
	}
}

// ValidateRequest checks a podcast script
func ValidateRequest(req *models.PodcastRequest) error {
	if req == nil {
		return apperrors.NewValidationError("body", "request body is required")
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.FromValidator(err)
	}
	for i, seg := range req.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			return apperrors.NewValidationError(fmt.Sprintf("segments[%d].text", i), "is required")
		}
	}
	return nil
}

// Synthesize returns the concatenated audio for req, from cache when the
// same script was rendered recently
func (s *Synthesizer) Synthesize(ctx context.Context, req *models.PodcastRequest) (*models.AudioResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	plans := s.plan(req)
	key := s.fingerprint(plans)
	metrics.RecordCacheRequest(Endpoint)

	if audio, found := s.cacheGet(key); found {
		metrics.RecordCacheHit(Endpoint)
		return &models.AudioResult{Audio: audio, ContentType: audioContentType, Key: key, CacheStatus: models.CacheHit}, nil
	}
	metrics.RecordCacheMiss(Endpoint)

	ch := s.group.DoChan(key, func() (interface{}, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.renderBudget(plans))
		defer cancel()
		return s.render(renderCtx, key, plans)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("podcast synthesis: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &models.AudioResult{Audio: res.Val.([]byte), ContentType: audioContentType, Key: key, CacheStatus: models.CacheMiss}, nil
	}
}

func (s *Synthesizer) render(ctx context.Context, key string, plans []segmentPlan) ([]byte, error) {
	var audio bytes.Buffer
	for i, p := range plans {
		payload, err := s.payload(p.text)
		if err != nil {
			return nil, err
		}

		resp, err := s.opts.Upstream.CallWithFallback(ctx, p.targets, payload)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		s.logger.Debug("Synthesized segment",
			zap.Int("segment", i),
			zap.String("target", resp.Target),
			zap.Int("attempts", resp.Attempts),
			zap.Int("bytes", len(resp.Body)))
		audio.Write(resp.Body)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := audio.Bytes()
	s.cachePut(key, out)
	s.logger.Info("Synthesized podcast", zap.String("key", key), zap.Int("segments", len(plans)), zap.Int("bytes", len(out)))
	return out, nil
}

// renderBudget leaves room for every segment to try all of its voices
func (s *Synthesizer) renderBudget(plans []segmentPlan) time.Duration {
	attempts := 0
	for _, p := range plans {
		attempts += max(1, len(p.targets))
	}
	return s.opts.Timeout * time.Duration(max(1, attempts))
}

// plan trims and truncates each segment and resolves its voice order
func (s *Synthesizer) plan(req *models.PodcastRequest) []segmentPlan {
	plans := make([]segmentPlan, 0, len(req.Segments))
	for _, seg := range req.Segments {
		text := strings.TrimSpace(seg.Text)
		if s.opts.MaxChars > 0 {
			text = upstream.Truncate(text, s.opts.MaxChars)
		}
		plans = append(plans, segmentPlan{
			text:    text,
			targets: s.targetsFor(seg.Speaker),
		})
	}
	return plans
}

// targetsFor puts the speaker's preferred voice in front of the configured
// fallback order
func (s *Synthesizer) targetsFor(speaker string) []models.Target {
	voice, ok := s.opts.SpeakerVoices[strings.ToLower(strings.TrimSpace(speaker))]
	if !ok || voice == "" || len(s.opts.Targets) == 0 {
		return s.opts.Targets
	}

	preferred := s.opts.Targets[0]
	preferred.Name = preferred.Name + "/" + voice
	preferred.VoiceID = voice

	targets := make([]models.Target, 0, len(s.opts.Targets)+1)
	targets = append(targets, preferred)
	for _, t := range s.opts.Targets {
		if t.VoiceID == voice && t.Credential == preferred.Credential {
			continue
		}
		targets = append(targets, t)
	}
	return targets
}

func (s *Synthesizer) payload(text string) (models.Payload, error) {
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: s.opts.ModelID,
		VoiceSettings: ttsVoiceSettings{
			Stability:       s.opts.Stability,
			SimilarityBoost: s.opts.SimilarityBoost,
		},
	})
	if err != nil {
		return models.Payload{}, fmt.Errorf("failed to encode TTS request: %w", err)
	}

	return models.Payload{
		Method: http.MethodPost,
		Path:   ttsPath,
		Query:  url.Values{"output_format": []string{ttsOutputFormat}},
		Header: http.Header{
			"Accept":       []string{audioContentType},
			"Content-Type": []string{"application/json"},
		},
		Body: body,
	}, nil
}

// fingerprint hashes the model, the voices and the sent text of every
// segment
func (s *Synthesizer) fingerprint(plans []segmentPlan) string {
	h := sha256.New()
	fmt.Fprintf(h, "model=%s\x00", s.opts.ModelID)
	for _, p := range plans {
		for _, t := range p.targets {
			fmt.Fprintf(h, "voice=%s\x00", t.VoiceID)
		}
		fmt.Fprintf(h, "text=%s\x00", p.text)
	}
	return "podcast:" + hex.EncodeToString(h.Sum(nil))
}

func (s *Synthesizer) cacheGet(key string) (val []byte, found bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cache get failed", zap.String("key", key), zap.Any("panic", r))
			metrics.RecordCacheError(Endpoint, string(apperrors.CacheFailure))
			val, found = nil, false
		}
	}()
	return s.opts.Cache.Get(key)
}

func (s *Synthesizer) cachePut(key string, val []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cache put failed", zap.String("key", key), zap.Any("panic", r))
			metrics.RecordCacheError(Endpoint, string(apperrors.CacheFailure))
		}
	}()
	s.opts.Cache.Put(key, val)
}

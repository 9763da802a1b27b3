package analyses

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chartlens-backend/internal/history"
	"chartlens-backend/internal/imaging"
	"chartlens-backend/internal/shared/metrics"
	"chartlens-backend/internal/shared/storage/object"
	"chartlens-backend/internal/shared/telemetry"
	"chartlens-backend/internal/usage"
	"chartlens-backend/internal/vision"
)

// Request is one analysis attempt.
type Request struct {
	// Subject identifies the caller for quota and history ("guest:<id>" or
	// a user id).
	Subject string
	// Email is set for authenticated users; drives the entitlement check.
	Email string
	// Authed marks JWT identities; controls remote history fanout.
	Authed bool
	// Image is the raw data URI as sent by the client.
	Image string
	// Language selects the analysis prompt ("fr" or "en").
	Language string
}

// Outcome is a finished analysis: the normalized model payload plus the id
// under which it was stored (empty for invalid results, which are not
// recorded).
type Outcome struct {
	ID     string
	Result *Result
}

// Service runs the analysis pipeline: quota gate, image normalization,
// vision call, result normalization, then usage and history recording for
// valid results only.
type Service struct {
	vision  vision.Client
	usage   *usage.Service
	history *history.Service
	objects object.ObjectStore
	now     func() time.Time
}

// NewService builds the analysis service.
func NewService(visionClient vision.Client, usageSvc *usage.Service, historySvc *history.Service, objects object.ObjectStore) *Service {
	return &Service{
		vision:  visionClient,
		usage:   usageSvc,
		history: historySvc,
		objects: objects,
		now:     time.Now,
	}
}

// Analyze runs the full pipeline for one chart image.
func (s *Service) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	metrics.IncAnalysisRequested()
	started := s.now()

	if err := s.usage.MayProceed(ctx, req.Subject, req.Email); err != nil {
		return nil, err
	}

	parsed, err := imaging.ParseDataURI(req.Image)
	if err != nil {
		metrics.IncAnalysisRejected()
		return nil, err
	}

	if s.vision == nil {
		metrics.IncAnalysisFailed()
		return nil, vision.ErrNotConfigured
	}

	raw, err := s.vision.Analyze(ctx, vision.AnalyzeInput{
		ImageDataURI: imaging.Normalize(parsed),
		Language:     req.Language,
	})
	if err != nil {
		metrics.IncAnalysisFailed()
		return nil, err
	}

	result, err := NormalizeResult(raw)
	if err != nil {
		metrics.IncAnalysisFailed()
		return nil, err
	}

	metrics.ObserveAnalysisDurationMs(float64(s.now().Sub(started).Milliseconds()))

	if !result.Valid() {
		metrics.IncAnalysisInvalid()
		telemetry.Info("analysis.invalid", map[string]any{
			"subject": req.Subject,
			"reason":  result.Reason(),
		})
		return &Outcome{Result: result}, nil
	}

	outcome := &Outcome{ID: uuid.NewString(), Result: result}
	s.record(ctx, req, outcome, parsed)
	metrics.IncAnalysisCompleted()
	return outcome, nil
}

// record counts the analysis and stores it in history. Persistence trouble
// is logged, not surfaced; the caller already has their analysis.
func (s *Service) record(ctx context.Context, req Request, outcome *Outcome, parsed *imaging.DataURI) {
	if err := s.usage.Record(ctx, req.Subject); err != nil {
		telemetry.Error("analysis.usage_record_failed", map[string]any{
			"analysis_id": outcome.ID,
			"error":       err.Error(),
		})
	}

	entry := history.Entry{
		ID:         outcome.ID,
		UserID:     req.Subject,
		Signal:     outcome.Result.Signal(),
		Trend:      outcome.Result.Trend(),
		TradeGrade: outcome.Result.TradeGrade(),
		Pattern:    outcome.Result.Pattern(),
		RiskReward: outcome.Result.RiskReward(),
		Confidence: outcome.Result.Confidence(),
		Result:     outcome.Result.Raw,
		CreatedAt:  s.now().UTC(),
	}
	entry.ThumbnailKey = s.saveThumbnail(ctx, outcome.ID, parsed)

	if err := s.history.Record(ctx, entry, req.Authed); err != nil {
		telemetry.Error("analysis.history_record_failed", map[string]any{
			"analysis_id": outcome.ID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) saveThumbnail(ctx context.Context, id string, parsed *imaging.DataURI) string {
	if s.objects == nil {
		return ""
	}
	thumb := imaging.Thumbnail(parsed)
	if thumb == nil {
		return ""
	}

	key := fmt.Sprintf("thumbnails/%s.jpg", id)
	if _, err := s.objects.Save(ctx, key, "image/jpeg", bytes.NewReader(thumb)); err != nil {
		telemetry.Warn("analysis.thumbnail_save_failed", map[string]any{
			"analysis_id": id,
			"error":       err.Error(),
		})
		return ""
	}
	return key
}

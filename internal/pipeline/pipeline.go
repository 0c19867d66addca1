// Package pipeline runs a queued submission end to end: cache check,
// provider fan-out, sufficiency scoring, profile synthesis, persistence,
// and notification.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harnessai/orchestrator/internal/cache"
	"github.com/harnessai/orchestrator/internal/fanout"
	"github.com/harnessai/orchestrator/internal/intake"
	"github.com/harnessai/orchestrator/internal/model"
	"github.com/harnessai/orchestrator/internal/notify"
	"github.com/harnessai/orchestrator/internal/provider"
	"github.com/harnessai/orchestrator/internal/scorer"
	"github.com/harnessai/orchestrator/internal/store"
	"github.com/harnessai/orchestrator/internal/synth"
)

// Pipeline processes submissions.
type Pipeline struct {
	store    store.Store
	cache    *cache.Cache
	fanout   *fanout.Coordinator
	scorer   *scorer.Scorer
	synth    *synth.Synthesizer
	notifier notify.Notifier
}

// New wires a Pipeline from its stages.
func New(st store.Store, c *cache.Cache, f *fanout.Coordinator, sc *scorer.Scorer, sy *synth.Synthesizer, n notify.Notifier) *Pipeline {
	return &Pipeline{
		store:    st,
		cache:    c,
		fanout:   f,
		scorer:   sc,
		synth:    sy,
		notifier: n,
	}
}

// Process runs one submission through the pipeline. The submission must
// be queued; Process claims it by transitioning to processing, which
// also guards against double delivery. Any internal panic lands the
// submission in failed rather than wedging it in processing.
func (p *Pipeline) Process(ctx context.Context, jobID string) (err error) {
	sub, err := p.store.GetSubmissionByJobID(ctx, jobID)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load submission %s", jobID)
	}
	if sub == nil {
		return eris.Errorf("pipeline: submission %s not found", jobID)
	}

	if err := p.store.TransitionSubmission(ctx, jobID, model.StatusQueued, model.StatusProcessing, nil); err != nil {
		return eris.Wrapf(err, "pipeline: claim submission %s", jobID)
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline panicked",
				zap.String("job_id", jobID),
				zap.Any("panic", r))
			p.fail(ctx, sub)
			err = eris.Errorf("pipeline: panic processing %s: %v", jobID, r)
		}
	}()

	log := zap.L().With(zap.String("job_id", jobID), zap.String("company", sub.CompanyName))
	log.Info("processing submission")

	// A fresh completed profile for the same URL short-circuits the run.
	if p.serveFromCache(ctx, sub) {
		return nil
	}

	subject, err := buildSubject(sub)
	if err != nil {
		log.Error("bad company URL", zap.Error(err))
		p.fail(ctx, sub)
		return err
	}

	dataset := p.fanout.Collect(ctx, subject)

	assessment := p.scorer.Assess(dataset)
	if !assessment.Sufficient {
		log.Info("insufficient data",
			zap.Int("score", assessment.Score),
			zap.Strings("sources", assessment.SourcesUsed))
		now := time.Now().UTC()
		if err := p.store.TransitionSubmission(ctx, sub.JobID, model.StatusProcessing, model.StatusInsufficientData, &now); err != nil {
			return eris.Wrap(err, "pipeline: mark insufficient")
		}
		p.notifyBestEffort(ctx, func(ctx context.Context) error {
			return p.notifier.InsufficientData(ctx, sub.Email, sub.CompanyName)
		})
		return nil
	}

	result, err := p.synth.Generate(ctx, sub.CompanyName, dataset)
	if err != nil {
		log.Error("profile synthesis failed", zap.Error(err))
		p.fail(ctx, sub)
		return err
	}
	result.Usage.LogCost(p.synth.Model(), sub.JobID)

	confidence := result.Profile.DataConfidence.OverallScore
	if confidence == "" {
		confidence = "Medium"
	}
	if _, err := p.store.CreateProfile(ctx, &model.Profile{
		SubmissionID: sub.ID,
		Payload:      result.Profile,
		SourcesUsed:  assessment.SourcesUsed,
		// The scorer's view, not the narrative's data_confidence claim.
		SourcesUnavailable: assessment.SourcesUnavailable,
		ConfidenceScore:    confidence,
		ValidationIssues:   result.ValidationIssues,
	}); err != nil {
		log.Error("profile persist failed", zap.Error(err))
		p.fail(ctx, sub)
		return eris.Wrap(err, "pipeline: store profile")
	}

	now := time.Now().UTC()
	if err := p.store.TransitionSubmission(ctx, sub.JobID, model.StatusProcessing, model.StatusComplete, &now); err != nil {
		return eris.Wrap(err, "pipeline: mark complete")
	}

	p.notifyBestEffort(ctx, func(ctx context.Context) error {
		return p.notifier.ProfileReady(ctx, sub.Email, sub.CompanyName, sub.AuthToken)
	})
	p.cache.Store(ctx, sub.CompanyURL, sub.JobID)

	log.Info("submission complete", zap.Strings("sources", assessment.SourcesUsed))
	return nil
}

// serveFromCache copies a cached completed profile onto this submission
// when one exists. Returns true when the submission was fully served.
func (p *Pipeline) serveFromCache(ctx context.Context, sub *model.Submission) bool {
	cachedJobID := p.cache.Lookup(ctx, sub.CompanyURL)
	if cachedJobID == "" || cachedJobID == sub.JobID {
		return false
	}

	cachedSub, err := p.store.GetSubmissionByJobID(ctx, cachedJobID)
	if err != nil || cachedSub == nil {
		return false
	}
	cachedProfile, err := p.store.GetProfileBySubmissionID(ctx, cachedSub.ID)
	if err != nil || cachedProfile == nil {
		return false
	}

	if _, err := p.store.CreateProfile(ctx, &model.Profile{
		SubmissionID:       sub.ID,
		Payload:            cachedProfile.Payload,
		SourcesUsed:        cachedProfile.SourcesUsed,
		SourcesUnavailable: cachedProfile.SourcesUnavailable,
		ConfidenceScore:    cachedProfile.ConfidenceScore,
		ValidationIssues:   cachedProfile.ValidationIssues,
	}); err != nil {
		zap.L().Warn("cached profile copy failed", zap.String("job_id", sub.JobID), zap.Error(err))
		return false
	}

	now := time.Now().UTC()
	if err := p.store.TransitionSubmission(ctx, sub.JobID, model.StatusProcessing, model.StatusComplete, &now); err != nil {
		zap.L().Warn("cached completion failed", zap.String("job_id", sub.JobID), zap.Error(err))
		return false
	}

	p.notifyBestEffort(ctx, func(ctx context.Context) error {
		return p.notifier.ProfileReady(ctx, sub.Email, sub.CompanyName, sub.AuthToken)
	})

	zap.L().Info("submission served from cache",
		zap.String("job_id", sub.JobID),
		zap.String("cached_job_id", cachedJobID))
	return true
}

func (p *Pipeline) fail(ctx context.Context, sub *model.Submission) {
	now := time.Now().UTC()
	if err := p.store.TransitionSubmission(ctx, sub.JobID, model.StatusProcessing, model.StatusFailed, &now); err != nil {
		zap.L().Error("failed-state transition failed",
			zap.String("job_id", sub.JobID),
			zap.Error(err))
	}
	p.notifyBestEffort(ctx, func(ctx context.Context) error {
		return p.notifier.ProcessingError(ctx, sub.Email, sub.CompanyName)
	})
}

func (p *Pipeline) notifyBestEffort(ctx context.Context, send func(context.Context) error) {
	if p.notifier == nil {
		return
	}
	if err := send(ctx); err != nil {
		zap.L().Warn("notification failed", zap.Error(err))
	}
}

func buildSubject(sub *model.Submission) (provider.Subject, error) {
	domain, err := intake.ExtractDomain(sub.CompanyURL)
	if err != nil {
		return provider.Subject{}, eris.Wrap(err, "pipeline: extract domain")
	}
	return provider.Subject{
		CompanyName: sub.CompanyName,
		CompanyURL:  sub.CompanyURL,
		Domain:      domain,
	}, nil
}

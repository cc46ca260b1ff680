package resolve

import (
	"go.uber.org/zap"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"github.com/lcwen/tcm-pipeline-go/internal/util"
	"github.com/lcwen/tcm-pipeline-go/pkg/errors"
)

// Resolver picks the control-table paragraph that guides a term's
// translation. Matching degrades through three levels: the exact
// volume+section pair, then any section of the same volume, then the
// numerically nearest volume (ties go to the lower volume). Within a
// level the first record in table order wins. Once a level selects a
// record, an empty paragraph fails the lookup outright; later levels
// are never consulted.
type Resolver struct {
	records []domain.ControlRecord
	logger  *zap.Logger
}

func NewResolver(records []domain.ControlRecord, logger *zap.Logger) *Resolver {
	return &Resolver{records: records, logger: logger}
}

// Resolve returns the context paragraph for a volume+section pair.
// On failure the returned result carries FallbackFailed and the error is
// a *errors.ResolutionError.
func (r *Resolver) Resolve(volume int, section string) (domain.ResolutionResult, error) {
	if len(r.records) == 0 {
		r.logger.Error("Control table is empty, nothing to resolve",
			zap.Int("volume", volume),
			zap.String("section", section),
		)
		return failedResult(volume, section), errors.NewResolutionError(volume, section)
	}

	if rec, ok := r.findExact(volume, section); ok {
		return r.finish(rec, domain.FallbackExact, volume, section)
	}

	if rec, ok := r.findSameVolume(volume); ok {
		r.logger.Warn("FALLBACK LEVEL 1: No exact match, using same volume with another section",
			zap.Int("volume", volume),
			zap.String("section", section),
			zap.String("actual_section", rec.Section),
		)
		return r.finish(rec, domain.FallbackSameVolume, volume, section)
	}

	rec := r.findNearestVolume(volume)
	r.logger.Warn("FALLBACK LEVEL 2: No context for volume, using nearest volume",
		zap.Int("volume", volume),
		zap.String("section", section),
		zap.Int("actual_volume", rec.Volume),
		zap.String("actual_section", rec.Section),
	)
	return r.finish(rec, domain.FallbackNearestVolume, volume, section)
}

func (r *Resolver) finish(rec domain.ControlRecord, level domain.FallbackLevel, volume int, section string) (domain.ResolutionResult, error) {
	if !rec.HasContent() {
		r.logger.Warn("Context paragraph is empty, resolution fails without further fallback",
			zap.Int("actual_volume", rec.Volume),
			zap.String("actual_section", rec.Section),
			zap.String("level", level.String()),
		)
		return failedResult(volume, section), errors.NewResolutionError(volume, section)
	}

	return domain.ResolutionResult{
		Context:       rec.Content,
		Level:         level,
		ActualVolume:  rec.Volume,
		ActualSection: rec.Section,
	}, nil
}

// failedResult echoes the requested keys so callers logging a failure
// still see what was asked for.
func failedResult(volume int, section string) domain.ResolutionResult {
	return domain.ResolutionResult{
		Level:         domain.FallbackFailed,
		ActualVolume:  volume,
		ActualSection: section,
	}
}

func (r *Resolver) findExact(volume int, section string) (domain.ControlRecord, bool) {
	for _, rec := range r.records {
		if rec.Volume == volume && rec.Section == section {
			return rec, true
		}
	}
	return domain.ControlRecord{}, false
}

func (r *Resolver) findSameVolume(volume int) (domain.ControlRecord, bool) {
	for _, rec := range r.records {
		if rec.Volume == volume {
			return rec, true
		}
	}
	return domain.ControlRecord{}, false
}

func (r *Resolver) findNearestVolume(volume int) domain.ControlRecord {
	best := r.records[0].Volume
	bestDist := util.Abs(best - volume)
	for _, rec := range r.records[1:] {
		dist := util.Abs(rec.Volume - volume)
		if dist < bestDist || (dist == bestDist && rec.Volume < best) {
			best = rec.Volume
			bestDist = dist
		}
	}

	for _, rec := range r.records {
		if rec.Volume == best {
			return rec
		}
	}
	return r.records[0]
}

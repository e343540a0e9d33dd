// Package pipeline runs contact rows through extraction, MX classification,
// deduplication and enrichment while reporting weighted progress.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/contact"
	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/mx"
	"github.com/sells-group/contact-mx/internal/progress"
)

// DefaultChunkSize is the number of rows extracted between Yield calls.
const DefaultChunkSize = 500

// Options configures a Pipeline.
type Options struct {
	// Workers bounds concurrent MX lookups. Default: 10.
	Workers int
	// ChunkSize is the number of rows extracted per chunk. Default: 500.
	ChunkSize int
	// Weights splits progress across phases. Zero value means 40/40/10/10.
	Weights model.TaskWeights
	// Normalizer canonicalizes emails during extraction.
	Normalizer contact.EmailNormalizer
	// Mapper maps single-email rows onto canonical fields. Default:
	// contact.DefaultFieldMapper.
	Mapper contact.FieldMapper
	// Yield is called after each extraction chunk with the chunk index and
	// the 0-100 share of rows extracted so far.
	Yield func(chunkIndex int, chunkProgress float64)
	// Clock replaces time.Now for ETA computation.
	Clock func() time.Time
}

// Pipeline orchestrates one or more runs sharing a classifier (and therefore
// its domain cache).
type Pipeline struct {
	classifier *mx.Classifier
	opts       Options
}

// New creates a Pipeline. It fails with progress.ErrInvalidWeights when the
// weights do not sum to 100.
func New(classifier *mx.Classifier, opts Options) (*Pipeline, error) {
	if opts.Workers <= 0 {
		opts.Workers = mx.DefaultWorkers
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Weights == (model.TaskWeights{}) {
		opts.Weights = model.DefaultTaskWeights()
	}
	if opts.Mapper == nil {
		opts.Mapper = contact.DefaultFieldMapper{}
	}
	if err := progress.ValidateWeights(opts.Weights); err != nil {
		return nil, err
	}
	return &Pipeline{classifier: classifier, opts: opts}, nil
}

// Classifier returns the classifier used for MX lookups.
func (p *Pipeline) Classifier() *mx.Classifier {
	return p.classifier
}

// Run processes rows and reports progress to sink. On failure the sink
// receives an error-labelled terminal status and Run returns a *RunError;
// no partial records are returned.
func (p *Pipeline) Run(ctx context.Context, rows []model.Row, sink model.StatusFunc) (*RunResult, error) {
	started := time.Now()
	log := zap.L().With(zap.Int("rows", len(rows)))
	log.Info("pipeline: starting run")

	var trackerOpts []progress.Option
	if p.opts.Clock != nil {
		trackerOpts = append(trackerOpts, progress.WithClock(p.opts.Clock))
	}
	tracker, err := progress.NewTracker(p.opts.Weights, sink, trackerOpts...)
	if err != nil {
		return nil, &RunError{Phase: model.PhaseParsing, Err: err}
	}

	fail := func(phase model.PhaseName, err error) (*RunResult, error) {
		tracker.Fail(err)
		log.Error("pipeline: run failed", zap.String("phase", string(phase)), zap.Error(err))
		return nil, &RunError{Phase: phase, Err: err}
	}

	trackPhase := func(name model.PhaseName, fn func() error) error {
		start := time.Now()
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		duration := time.Since(start).Milliseconds()
		if err != nil {
			return err
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", string(name)),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	result := &RunResult{}
	result.Stats.Rows = len(rows)

	// Parsing: the first row's columns pick the scenario.
	tracker.Update(model.TaskParsing, 0)
	if len(rows) == 0 {
		return fail(model.PhaseParsing, eris.Wrap(contact.ErrScenarioUndetected, "no rows"))
	}
	kind, err := contact.DetectScenario(contact.Headers(rows[0]))
	if err != nil {
		return fail(model.PhaseParsing, err)
	}
	result.Scenario = kind
	log = log.With(zap.String("scenario", string(kind)))

	var records []model.ContactRecord
	if err := trackPhase(model.PhaseExtracting, func() error {
		var extractErr error
		records, extractErr = p.extract(ctx, rows, kind, tracker, &result.Stats)
		return extractErr
	}); err != nil {
		return fail(model.PhaseExtracting, err)
	}

	if err := trackPhase(model.PhaseClassifying, func() error {
		degraded, classifyErr := p.classify(ctx, records, tracker, &result.Stats)
		result.Degraded = degraded
		return classifyErr
	}); err != nil {
		return fail(model.PhaseClassifying, err)
	}

	if err := trackPhase(model.PhaseDeduplicating, func() error {
		tracker.Phase(model.PhaseDeduplicating, model.TaskDeduplication, 0, 1)
		before := len(records)
		records = contact.Deduplicate(records)
		result.Stats.Duplicates = before - len(records)
		tracker.Phase(model.PhaseDeduplicating, model.TaskDeduplication, 1, 1)
		return nil
	}); err != nil {
		return fail(model.PhaseDeduplicating, err)
	}

	if err := trackPhase(model.PhaseEnriching, func() error {
		tracker.Phase(model.PhaseEnriching, model.TaskEnrichment, 0, 1)
		contact.AssignOtherDMNames(records)
		for _, r := range records {
			if r.OtherDMName != "" {
				result.Stats.Enriched++
			}
		}
		tracker.Phase(model.PhaseEnriching, model.TaskEnrichment, 1, 1)
		return nil
	}); err != nil {
		return fail(model.PhaseEnriching, err)
	}

	result.Records = records
	result.Stats.Duration = time.Since(started)
	tracker.Complete()

	log.Info("pipeline: run complete",
		zap.Int("records", len(records)),
		zap.Int("skipped", result.Stats.Skipped),
		zap.Int("duplicates", result.Stats.Duplicates),
		zap.Int("domains", result.Stats.UniqueDomains),
		zap.Int("degraded", len(result.Degraded)),
		zap.Int64("duration_ms", result.Stats.Duration.Milliseconds()),
	)
	return result, nil
}

// extract walks rows in chunks, checking ctx and calling Yield between chunks.
// Every slot counts toward progress, including blank and invalid ones.
func (p *Pipeline) extract(ctx context.Context, rows []model.Row, kind model.ScenarioKind, tracker *progress.Tracker, stats *RunStats) ([]model.ContactRecord, error) {
	ext := contact.NewExtractor(kind,
		contact.WithFieldMapper(p.opts.Mapper),
		contact.WithNormalizer(p.opts.Normalizer),
	)
	slots := ext.SlotsPerRow()
	total := len(rows) * slots
	stats.Slots = total

	var out []model.ContactRecord
	done := 0
	tracker.Phase(model.PhaseExtracting, model.TaskProcessing, 0, total)

	for chunk, start := 0, 0; start < len(rows); chunk, start = chunk+1, start+p.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+p.opts.ChunkSize, len(rows))
		for _, row := range rows[start:end] {
			recs, skipped := ext.ExtractRow(row)
			out = append(out, recs...)
			stats.Skipped += skipped
			done += slots
			tracker.Phase(model.PhaseExtracting, model.TaskProcessing, done, total)
		}
		if p.opts.Yield != nil {
			p.opts.Yield(chunk, float64(end)*100/float64(len(rows)))
		}
	}

	stats.Extracted = len(out)
	return out, nil
}

// classify resolves each unique email domain once, then stamps the provider
// onto every record. Degraded classifications are returned sorted by domain.
func (p *Pipeline) classify(ctx context.Context, records []model.ContactRecord, tracker *progress.Tracker, stats *RunStats) ([]model.Classification, error) {
	seen := make(map[string]struct{})
	var domains []string
	for _, r := range records {
		d := r.Domain()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	stats.UniqueDomains = len(domains)

	total := len(domains)
	done := 0
	var degraded []model.Classification
	tracker.Phase(model.PhaseClassifying, model.TaskMXLookup, 0, total)

	results := p.classifier.ClassifyAll(ctx, domains, p.opts.Workers, func(c model.Classification) {
		done++
		if c.Degraded {
			degraded = append(degraded, c)
		}
		tracker.Phase(model.PhaseClassifying, model.TaskMXLookup, done, total)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].MXProvider = results[records[i].Domain()].Provider
	}
	sort.Slice(degraded, func(i, j int) bool {
		return degraded[i].Domain < degraded[j].Domain
	})
	return degraded, nil
}

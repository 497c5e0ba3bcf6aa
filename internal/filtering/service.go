package filtering

import (
	"context"
	stderrors "errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sieve/internal/config"
	"sieve/internal/constants"
	"sieve/internal/logger"
	pkgerrors "sieve/pkg/errors"
	"sieve/pkg/filter"
	"sieve/pkg/logging"
	"sieve/pkg/metrics"
	"sieve/pkg/models"
	"sieve/pkg/tracing"
)

const tracerName = "sieve-filtering"

const defaultReloadInterval = 30 * time.Second

var errNoStore = pkgerrors.ErrServiceUnavailable.WithDetail("reason", "saved filters require a database")

type Service struct {
	repo   Repository
	events EventPublisher
	cfg    config.FilteringConfig
	logger logger.Logger

	streamFilters []SavedFilter
	streamMu      sync.RWMutex
}

type ServiceOption func(*Service)

// WithRepository enables saved filters and stream filtering.
func WithRepository(repo Repository) ServiceOption {
	return func(s *Service) {
		s.repo = repo
	}
}

func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) {
		s.events = p
	}
}

func NewService(cfg config.FilteringConfig, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:           cfg,
		logger:        log,
		streamFilters: make([]SavedFilter, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs an ad-hoc filter over the request messages.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "filtering.evaluate")
	defer span.End()

	strict := boolOr(req.Strict, s.cfg.Strict)
	ignoreMissing := boolOr(req.IgnoreMissingFields, s.cfg.IgnoreMissingFields)

	return s.run(ctx, metrics.SourceAPI, req.Messages, req.Filter.Filter, strict, ignoreMissing)
}

// Apply runs the saved filter id over the request messages.
func (s *Service) Apply(ctx context.Context, id string, req ApplyRequest) (*EvaluateResponse, error) {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "filtering.apply",
		trace.WithAttributes(attribute.String("filter.id", id)))
	defer span.End()

	saved, err := s.GetFilter(ctx, id)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	ctx = logging.WithFilterID(ctx, id)
	strict := boolOr(req.Strict, saved.Strict)
	ignoreMissing := boolOr(req.IgnoreMissingFields, s.cfg.IgnoreMissingFields)

	return s.run(ctx, metrics.SourceSaved, req.Messages, saved.Definition.Filter, strict, ignoreMissing)
}

func (s *Service) run(ctx context.Context, source string, messages []filter.Message, f filter.Filter, strict, ignoreMissing bool) (*EvaluateResponse, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("filter.messages", len(messages)),
		attribute.Bool("filter.strict", strict),
	)

	if s.cfg.MaxMessages > 0 && len(messages) > s.cfg.MaxMessages {
		return nil, pkgerrors.ErrValidation.
			WithDetail("field", "messages").
			WithDetail("max_messages", s.cfg.MaxMessages).
			WithDetail("received", len(messages))
	}

	start := time.Now()
	matched, err := s.evaluator(strict, ignoreMissing).Messages(messages, f)
	if err != nil {
		metrics.IncEvaluationError(source, errorCode(err))
		tracing.RecordError(span, err)
		s.logger.InfowCtx(ctx, "Filter evaluation rejected",
			"source", source,
			"error", err,
		)
		return nil, err
	}

	metrics.RecordEvaluation(source, len(messages), len(matched), time.Since(start))
	span.SetAttributes(attribute.Int("filter.matched", len(matched)))

	return &EvaluateResponse{
		Messages: matched,
		Matched:  len(matched),
		Total:    len(messages),
	}, nil
}

func (s *Service) evaluator(strict, ignoreMissing bool) *filter.Evaluator {
	opts := []filter.Option{filter.Strict(strict), filter.WithLogger(s.logger)}
	if ignoreMissing {
		opts = append(opts, filter.IgnoreMissingFields())
	}
	return filter.NewEvaluator(opts...)
}

func (s *Service) CreateFilter(ctx context.Context, req CreateFilterRequest) (*SavedFilter, error) {
	if s.repo == nil {
		return nil, errNoStore
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("field", "name")
	}
	if err := validateDefinition(req.Definition.Filter); err != nil {
		return nil, err
	}

	f := &SavedFilter{
		Name:        name,
		Description: req.Description,
		Definition:  req.Definition,
		Strict:      boolOr(req.Strict, s.cfg.Strict),
		Stream:      boolOr(req.Stream, false),
		Enabled:     boolOr(req.Enabled, true),
	}

	if err := s.repo.Create(ctx, f); err != nil {
		metrics.IncSavedFilterOperation("create", "error")
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	metrics.IncSavedFilterOperation("create", "success")

	s.logger.InfowCtx(ctx, "Saved filter created", "filter_id", f.ID, "name", f.Name, "stream", f.Stream)
	s.publishEvent(ctx, models.ActionCreate, f.ID)
	return f, nil
}

func (s *Service) ListFilters(ctx context.Context, limit, offset int) ([]SavedFilter, error) {
	if s.repo == nil {
		return nil, errNoStore
	}

	filters, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		metrics.IncSavedFilterOperation("list", "error")
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	metrics.IncSavedFilterOperation("list", "success")
	return filters, nil
}

func (s *Service) GetFilter(ctx context.Context, id string) (*SavedFilter, error) {
	if s.repo == nil {
		return nil, errNoStore
	}

	f, err := s.repo.Get(ctx, id)
	if err != nil {
		metrics.IncSavedFilterOperation("get", "error")
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if f == nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	metrics.IncSavedFilterOperation("get", "success")
	return f, nil
}

func (s *Service) UpdateFilter(ctx context.Context, id string, req UpdateFilterRequest) (*SavedFilter, error) {
	if s.repo == nil {
		return nil, errNoStore
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, pkgerrors.ErrValidation.WithDetail("field", "name")
	}
	if req.Definition != nil {
		if err := validateDefinition(req.Definition.Filter); err != nil {
			return nil, err
		}
	}

	f, err := s.GetFilter(ctx, id)
	if err != nil {
		return nil, err
	}

	applyUpdate(f, req)

	if err := s.repo.Update(ctx, f); err != nil {
		metrics.IncSavedFilterOperation("update", "error")
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	metrics.IncSavedFilterOperation("update", "success")

	s.logger.InfowCtx(ctx, "Saved filter updated", "filter_id", f.ID)
	s.publishEvent(ctx, models.ActionUpdate, f.ID)
	return f, nil
}

func (s *Service) DeleteFilter(ctx context.Context, id string) error {
	if s.repo == nil {
		return errNoStore
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		metrics.IncSavedFilterOperation("delete", "error")
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	metrics.IncSavedFilterOperation("delete", "success")

	s.logger.InfowCtx(ctx, "Saved filter deleted", "filter_id", id)
	s.publishEvent(ctx, models.ActionDelete, id)
	return nil
}

func (s *Service) publishEvent(ctx context.Context, action, id string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishFilterEvent(ctx, action, id); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish filter event",
			"action", action,
			"filter_id", id,
			"error", err,
		)
	}
}

// Filter runs every active stream filter over the envelope payload. All
// filters must match for the envelope to pass. A filter that fails is
// handled according to filtering.fallback.on_error.
func (s *Service) Filter(ctx context.Context, msg models.MessageEnvelope) (Decision, error) {
	ctx, span := tracing.GetTracer(tracerName).Start(ctx, "filtering.filter")
	defer span.End()

	filters := s.activeStreamFilters()
	payload := filter.Message(msg.Payload)
	start := time.Now()

	decision, err := s.evaluateStream(ctx, filters, payload)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.IncStreamMessages("error")
		return Decision{}, err
	}

	matched := 0
	status := "filtered"
	if decision.Passed {
		matched = 1
		status = "passed"
	}
	metrics.RecordEvaluation(metrics.SourceStream, 1, matched, time.Since(start))
	metrics.IncStreamMessages(status)
	span.SetAttributes(attribute.Bool("filter.passed", decision.Passed))

	return decision, nil
}

func (s *Service) evaluateStream(ctx context.Context, filters []SavedFilter, payload filter.Message) (Decision, error) {
	decision := Decision{Passed: true, FilterIDs: make([]string, 0, len(filters))}

	for _, sf := range filters {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}

		fctx := logging.WithFilterID(ctx, sf.ID)
		ok, err := s.evaluator(sf.Strict, s.cfg.IgnoreMissingFields).Evaluate(payload, sf.Definition.Filter)
		if err != nil {
			metrics.IncEvaluationError(metrics.SourceStream, errorCode(err))
			switch s.cfg.Fallback.OnError {
			case constants.FallbackAllow:
				metrics.FallbackUsageTotal.WithLabelValues(constants.FallbackAllow, "evaluation_error").Inc()
				s.logger.WarnwCtx(fctx, "Evaluation error, skipping filter (fallback: allow)",
					"filter_name", sf.Name,
					"error", err,
				)
				decision.Fallback = true
				continue
			case constants.FallbackDeny:
				metrics.FallbackUsageTotal.WithLabelValues(constants.FallbackDeny, "evaluation_error").Inc()
				s.logger.WarnwCtx(fctx, "Evaluation error, dropping message (fallback: deny)",
					"filter_name", sf.Name,
					"error", err,
				)
				decision.Passed = false
				return decision, nil
			default:
				s.logger.ErrorwCtx(fctx, "Filter evaluation error",
					"filter_name", sf.Name,
					"error", err,
				)
				return Decision{}, err
			}
		}

		if !ok {
			s.logger.DebugwCtx(fctx, "Filter rejected message", "filter_name", sf.Name)
			decision.Passed = false
			return decision, nil
		}

		decision.FilterIDs = append(decision.FilterIDs, sf.ID)
	}

	return decision, nil
}

func (s *Service) activeStreamFilters() []SavedFilter {
	s.streamMu.RLock()
	defer s.streamMu.RUnlock()

	filters := make([]SavedFilter, len(s.streamFilters))
	copy(filters, s.streamFilters)
	return filters
}

// ActiveStreamFilters is the number of filters applied to the input topic.
func (s *Service) ActiveStreamFilters() int {
	s.streamMu.RLock()
	defer s.streamMu.RUnlock()
	return len(s.streamFilters)
}

// ReloadFilters replaces the active stream filters with the enabled stream
// filters from the store, after a random delay of up to
// reload.jitter_max_milliseconds unless skipJitter is set.
func (s *Service) ReloadFilters(ctx context.Context, skipJitter ...bool) error {
	if s.repo == nil {
		return nil
	}

	shouldSkipJitter := len(skipJitter) > 0 && skipJitter[0]
	if err := s.applyJitter(ctx, shouldSkipJitter); err != nil {
		return err
	}

	s.logger.DebugwCtx(ctx, "Loading stream filters from database")
	filters, err := s.repo.ListStreamFilters(ctx)
	if err != nil {
		return err
	}

	s.updateStreamFilters(ctx, s.usableFilters(ctx, filters))
	return nil
}

func (s *Service) usableFilters(ctx context.Context, filters []SavedFilter) []SavedFilter {
	usable := make([]SavedFilter, 0, len(filters))
	for _, f := range filters {
		if err := filter.Validate(f.Definition.Filter); err != nil {
			s.logger.WarnwCtx(logging.WithFilterID(ctx, f.ID), "Skipping invalid stream filter",
				"filter_name", f.Name,
				"error", err,
			)
			continue
		}
		usable = append(usable, f)
	}
	return usable
}

func (s *Service) applyJitter(ctx context.Context, skipJitter bool) error {
	if skipJitter || s.cfg.Reload.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(s.cfg.Reload.JitterMaxMilliseconds)) * time.Millisecond
	s.logger.DebugwCtx(ctx, "Reload scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) updateStreamFilters(ctx context.Context, filters []SavedFilter) {
	s.streamMu.Lock()
	s.streamFilters = filters
	s.streamMu.Unlock()

	metrics.SetStreamActiveFilters(len(filters))
	s.logger.InfowCtx(ctx, "Successfully reloaded stream filters",
		"filters_count", len(filters),
	)
}

// StartReloader reloads the stream filters immediately and then on every
// reload interval until ctx ends.
func (s *Service) StartReloader(ctx context.Context) error {
	interval := time.Duration(s.cfg.Reload.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultReloadInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.ReloadFilters(ctx, true); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to reload stream filters",
			"error", err,
		)
	}

	for {
		select {
		case <-ticker.C:
			if err := s.ReloadFilters(ctx); err != nil {
				s.logger.ErrorwCtx(ctx, "Failed to reload stream filters",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func validateDefinition(f filter.Filter) error {
	err := filter.Validate(f)
	if err == nil {
		return nil
	}

	out := pkgerrors.ErrValidation.WithCause(err).WithDetail("field", "definition")
	var appErr *pkgerrors.Error
	if stderrors.As(err, &appErr) {
		out = out.WithDetails(appErr.Details).WithDetail("reason", appErr.Code)
	}
	return out
}

func applyUpdate(f *SavedFilter, req UpdateFilterRequest) {
	if req.Name != nil {
		f.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		f.Description = *req.Description
	}
	if req.Definition != nil {
		f.Definition = *req.Definition
	}
	if req.Strict != nil {
		f.Strict = *req.Strict
	}
	if req.Stream != nil {
		f.Stream = *req.Stream
	}
	if req.Enabled != nil {
		f.Enabled = *req.Enabled
	}
}

func errorCode(err error) string {
	var appErr *pkgerrors.Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return pkgerrors.CodeInternal
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

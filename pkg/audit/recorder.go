package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbiter-hq/arbiter/pkg/policy/engine"
)

// RecorderConfig contains configuration for the audit recorder.
type RecorderConfig struct {
	// Enabled enables audit recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds both the enqueue wait when the buffer is full and
	// each storage write. Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Enabled:      true,
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes decision records asynchronously so the evaluation path
// never blocks on the storage backend.
type Recorder struct {
	storage    Storage
	config     *RecorderConfig
	recordChan chan *Record
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
}

// NewRecorder creates an audit recorder backed by the given storage.
func NewRecorder(storage Storage, config *RecorderConfig) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record builds an audit record from a request and its decision and enqueues
// it for async writing. It returns immediately; a full buffer drops the
// record after WriteTimeout rather than stalling the caller.
func (r *Recorder) Record(ctx context.Context, gatewayID, correlationID string, req engine.Request, decision engine.Decision) error {
	if !r.config.Enabled {
		return nil
	}

	record := newRecord(gatewayID, correlationID, req, decision)

	select {
	case r.recordChan <- record:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("audit channel full, dropping record",
			"record_id", record.ID,
			"action_id", record.ActionID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"record_id", record.ID,
		)
		return NewRecorderError(record.ID, context.Canceled)
	}
}

// newRecord converts a request/decision pair into a Record.
func newRecord(gatewayID, correlationID string, req engine.Request, decision engine.Decision) *Record {
	input := make(map[string]any, len(req.ContextInput))
	for name, v := range req.ContextInput {
		input[name] = v.Interface()
	}

	tags := make(map[string]string, len(req.PrincipalTags))
	for k, v := range req.PrincipalTags {
		tags[k] = v
	}

	var policyErrors []PolicyErrorRecord
	for _, pe := range decision.PolicyErrors {
		policyErrors = append(policyErrors, PolicyErrorRecord{
			PolicyID: pe.PolicyID,
			Kind:     string(pe.Err.Kind),
			Message:  pe.Err.Detail,
		})
	}

	return &Record{
		ID:               uuid.NewString(),
		CorrelationID:    correlationID,
		EvaluatedAt:      time.Now().Add(-decision.EvaluationTime),
		GatewayID:        gatewayID,
		ActionID:         req.ActionID,
		Resource:         req.Resource,
		PrincipalTags:    tags,
		Input:            input,
		Allowed:          decision.Allowed,
		Blocked:          decision.ShouldBlock(),
		Mode:             string(decision.ModeApplied),
		MatchedPermitIDs: append([]string(nil), decision.MatchedPermitIDs...),
		MatchedForbidIDs: append([]string(nil), decision.MatchedForbidIDs...),
		PolicyErrors:     policyErrors,
		CandidateCount:   decision.CandidateCount,
		EvaluationTime:   decision.EvaluationTime,
	}
}

// Close gracefully shuts down the recorder, draining the channel and waiting
// for all pending writes to complete.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	r.logger.Info("audit recorder shut down")
	return nil
}

// worker drains the record channel and writes to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	record.RecordedAt = time.Now()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store audit record",
			"record_id", record.ID,
			"action_id", record.ActionID,
			"error", err,
		)
		return
	}

	r.logger.Debug("audit record written",
		"record_id", record.ID,
		"action_id", record.ActionID,
		"decision", record.Decision(),
		"mode", record.Mode,
	)
}

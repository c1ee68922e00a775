package assign

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/floor-plan-reservations/internal/floorplan"
	"github.com/iliyamo/floor-plan-reservations/internal/model"
	"github.com/iliyamo/floor-plan-reservations/internal/store"
)

// EventPublisher receives a notification for every committed assignment.
// Implemented by the queue publisher; nil disables publishing.
type EventPublisher interface {
	PublishTableAssigned(ctx context.Context, table model.Table, res model.Reservation) error
}

// Assigned pairs a booking with its successful assignment.
type Assigned struct {
	Booking model.Booking `json:"booking"`
	Result  Result        `json:"result"`
}

// Failure pairs a booking with the typed error that rejected it.
type Failure struct {
	Booking model.Booking `json:"booking"`
	Code    ErrorCode     `json:"code"`
	Message string        `json:"error"`
}

// Summary counts the outcome of a batch.
type Summary struct {
	Total    int `json:"total"`
	Assigned int `json:"assigned"`
	Failed   int `json:"failed"`
}

// BatchResult is the full outcome of one ProcessBatch run.
type BatchResult struct {
	Successful []Assigned `json:"successful"`
	Failed     []Failure  `json:"failed"`
	Summary    Summary    `json:"summary"`
}

// BatchProcessor runs the orchestrator over a booking list and commits
// the survivors: local append, record-store persist, reconciler mark,
// event publish.  Bookings are processed strictly in order and each
// persistence call completes before the next booking starts, so the
// duplicate guard and the conflict checker always see the bookings
// committed earlier in the same batch.
type BatchProcessor struct {
	orchestrator *Orchestrator
	state        *floorplan.State
	records      store.RecordStore // nil -> local-only mode
	reconciler   *Reconciler
	events       EventPublisher // nil -> publishing disabled
	log          *zap.Logger
}

// NewBatchProcessor wires the processor.  records and events may be nil.
func NewBatchProcessor(orchestrator *Orchestrator, state *floorplan.State, records store.RecordStore, reconciler *Reconciler, events EventPublisher, log *zap.Logger) *BatchProcessor {
	if orchestrator == nil || state == nil || reconciler == nil || log == nil {
		panic("nil dependency passed to NewBatchProcessor")
	}
	return &BatchProcessor{
		orchestrator: orchestrator,
		state:        state,
		records:      records,
		reconciler:   reconciler,
		events:       events,
		log:          log,
	}
}

// ProcessBatch assigns every booking in input order.  One booking's
// failure never aborts the batch.  When persistence fails the local
// append is rolled back before the failure is recorded, so local and
// remote state never diverge by a visible unpersisted reservation.
// Callers should refresh from the record store when Summary.Assigned > 0:
// persistence side effects (field coercion, rejected fields) may have
// altered the stored record.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, bookings []model.Booking) BatchResult {
	result := BatchResult{Summary: Summary{Total: len(bookings)}}
	for i, b := range bookings {
		assigned, err := p.processOne(ctx, b)
		if err != nil {
			code := CodeOf(err)
			if code == "" {
				code = CodePersistenceFailure
			}
			result.Failed = append(result.Failed, Failure{Booking: b, Code: code, Message: err.Error()})
			result.Summary.Failed++
			if IsDuplicate(err) {
				// Duplicates are success-adjacent; they do not need
				// operator attention.
				p.log.Info("booking already assigned", zap.Int("index", i))
			} else {
				p.log.Warn("booking failed",
					zap.Int("index", i),
					zap.String("code", string(code)),
					zap.Error(err))
			}
			continue
		}
		result.Successful = append(result.Successful, assigned)
		result.Summary.Assigned++
		p.log.Info("booking assigned",
			zap.Int("index", i),
			zap.String("table_id", assigned.Result.Table.ID),
			zap.Int("pax", b.Pax))
	}
	return result
}

func (p *BatchProcessor) processOne(ctx context.Context, b model.Booking) (Assigned, error) {
	out, err := p.orchestrator.Assign(b)
	if err != nil {
		return Assigned{}, err
	}
	res := out.Reservation

	// Commit locally first.  TryCommit re-checks conflicts under the
	// state lock, closing the gap between the orchestrator's filter and
	// this append when assignments run concurrently.
	if err := p.state.TryCommit(res); err != nil {
		var ce *floorplan.ConflictError
		if errors.As(err, &ce) {
			return Assigned{}, &Error{Code: CodeConflictDetected, Message: ce.Error(), Err: ce}
		}
		return Assigned{}, newError(CodeInvalidBooking, "commit failed: %v", err)
	}

	if p.records != nil {
		rec, err := p.records.CreateReservation(ctx, store.Fields{
			TableID:        res.TableID,
			Source:         res.Source,
			Status:         res.Status,
			Pax:            res.Pax,
			StartTime:      res.StartTime,
			Duration:       res.Duration,
			CustomerName:   res.CustomerName,
			PhoneNumber:    res.PhoneNumber,
			CustomerNotes:  res.CustomerNotes,
			SpecialRequest: res.SpecialRequest,
			SystemNotes:    res.SystemNotes,
		})
		if err != nil {
			p.state.Remove(res.TableID, res.ID)
			return Assigned{}, &Error{Code: CodePersistenceFailure, Message: "record store rejected reservation", Err: err}
		}
		res.ExternalID = rec.ID
		p.state.SetExternalID(res.TableID, res.ID, rec.ID)
	}

	p.reconciler.MarkHandled(b.EventID, b.CustomerName, b.PhoneNumber, b.StartTime)

	if p.events != nil {
		if err := p.events.PublishTableAssigned(ctx, out.Table, res); err != nil {
			// Publishing is advisory; the assignment stands.
			p.log.Warn("assignment event publish failed", zap.Error(err))
		}
	}

	out.Reservation = res
	return Assigned{Booking: b, Result: out}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agendum/internal/config"
	"agendum/internal/database"
	"agendum/internal/domain"
	"agendum/internal/events"
	"agendum/internal/interval"
	"agendum/internal/metrics"
	"agendum/internal/models"
	"agendum/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when a client exceeds its appointment request
// allowance for the current window.
var ErrRateLimited = errors.New("too many requests")

// conflictStatuses are the appointment statuses that occupy an interval for
// confirmation purposes. Requested appointments never block each other;
// blocks are checked unconditionally by the store.
var conflictStatuses = []models.Status{models.StatusConfirmed}

type AppointmentService struct {
	store        domain.Store
	eventBus     domain.EventPublisher
	syncWorker   domain.SyncWorker
	slotCache    domain.SlotCache
	retryPolicy  worker.RetryPolicy
	horizonDays  int
	clientLimit  int
	clientWindow time.Duration
	logger       *zerolog.Logger
}

func NewAppointmentService(store domain.Store, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, slotCache domain.SlotCache, cfg config.SchedulingConfig, logger *zerolog.Logger) *AppointmentService {
	retry := worker.RetryPolicy{
		MaxRetries:    cfg.MaxTxRetries,
		InitialDelay:  time.Duration(cfg.RetryBaseMs) * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 25 * time.Millisecond
	}
	horizonDays := cfg.BookingHorizonDays
	if horizonDays <= 0 {
		horizonDays = 90
	}
	clientWindow := time.Duration(cfg.ClientRequestWindowSec) * time.Second
	if clientWindow <= 0 {
		clientWindow = time.Hour
	}
	return &AppointmentService{
		store:        store,
		eventBus:     eventBus,
		syncWorker:   syncWorker,
		slotCache:    slotCache,
		retryPolicy:  retry,
		horizonDays:  horizonDays,
		clientLimit:  cfg.ClientRequestLimit,
		clientWindow: clientWindow,
		logger:       logger,
	}
}

func (s *AppointmentService) validateInterval(start, end time.Time) error {
	if _, err := interval.New(start, end); err != nil {
		return fmt.Errorf("%w: start must precede end", database.ErrInvalidInterval)
	}
	if end.Before(time.Now()) {
		return fmt.Errorf("%w: interval is in the past", database.ErrInvalidInterval)
	}
	maxStart := time.Now().AddDate(0, 0, s.horizonDays)
	if start.After(maxStart) {
		return fmt.Errorf("%w: start exceeds booking horizon", database.ErrInvalidInterval)
	}
	return nil
}

// CreateAppointment records a Requested appointment without any conflict
// check. Overlapping requests are allowed to coexist until one of them is
// confirmed.
func (s *AppointmentService) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.ProfessionalID == "" {
		return fmt.Errorf("%w: professional id is required", database.ErrInvalidInterval)
	}
	if err := s.validateInterval(appt.Start, appt.End); err != nil {
		metrics.IncTransition("create", "error")
		return err
	}
	if err := s.checkClientAllowance(ctx, appt); err != nil {
		metrics.IncTransition("create", "error")
		return err
	}

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	appt.Status = models.StatusRequested
	appt.HasPendingReschedule = false

	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		metrics.IncTransition("create", "error")
		return err
	}
	metrics.IncTransition("create", "ok")

	s.publishEvent(events.EventAppointmentRequested, appt, "")
	s.enqueueSync(ctx, appt, worker.TaskUpsert)
	s.invalidateSlots(ctx, appt.ProfessionalID)

	return nil
}

// ConfirmAppointment atomically promotes a Requested appointment to
// Confirmed. The overlap check and the status write happen inside one
// transaction; a concurrent confirmation of an overlapping appointment makes
// exactly one of the two win. Confirming an already Confirmed appointment is
// a no-op.
func (s *AppointmentService) ConfirmAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var confirmed *models.Appointment
	var confirmedAt time.Time
	alreadyConfirmed := false

	err := s.withRetry(ctx, func(tx *database.Tx) error {
		confirmed = nil
		alreadyConfirmed = false

		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		switch appt.Status {
		case models.StatusCancelled:
			return fmt.Errorf("%w: appointment is cancelled", database.ErrAlreadyResolved)
		case models.StatusConfirmed:
			alreadyConfirmed = true
			confirmed = appt
			return nil
		}

		hits, err := tx.FindOverlapping(ctx, appt.ProfessionalID, appt.Interval(), conflictStatuses, appt.ID)
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			return fmt.Errorf("%w: interval overlaps %s %s", database.ErrConflictDetected, hits[0].Kind, hits[0].ID)
		}

		confirmedAt = time.Now().UTC()
		if err := tx.ConfirmAppointment(ctx, appt.ID, appt.Version, confirmedAt); err != nil {
			return err
		}
		confirmed = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrConflictDetected) {
			metrics.IncConflict()
			metrics.IncTransition("confirm", "conflict")
		} else {
			metrics.IncTransition("confirm", "error")
		}
		return nil, err
	}

	metrics.IncTransition("confirm", "ok")
	if alreadyConfirmed {
		return confirmed, nil
	}

	// The transaction committed; a failing refetch must not hide that, so
	// fall back to the in-transaction snapshot with the write applied.
	if fresh, err := s.store.GetAppointment(ctx, id); err == nil {
		confirmed = fresh
	} else {
		s.logger.Warn().Err(err).Str("appointment_id", id).Msg("refetch after confirm failed")
		confirmed.Status = models.StatusConfirmed
		confirmed.ConfirmedAt = &confirmedAt
		confirmed.Version++
	}
	s.publishEvent(events.EventAppointmentConfirmed, confirmed, "")
	s.enqueueSync(ctx, confirmed, worker.TaskUpdateStatus)
	s.invalidateSlots(ctx, confirmed.ProfessionalID)

	return confirmed, nil
}

// CancelAppointment moves an appointment to Cancelled and rejects any
// pending reschedule request for it inside the same transaction. Cancelling
// twice returns ErrAlreadyResolved.
func (s *AppointmentService) CancelAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var cancelled *models.Appointment
	var cancelledAt time.Time

	err := s.withRetry(ctx, func(tx *database.Tx) error {
		appt, err := tx.GetAppointment(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == models.StatusCancelled {
			return fmt.Errorf("%w: appointment is already cancelled", database.ErrAlreadyResolved)
		}

		cancelledAt = time.Now().UTC()
		if err := tx.CancelAppointment(ctx, appt.ID, appt.Version, cancelledAt); err != nil {
			return err
		}
		if err := tx.RejectPendingReschedules(ctx, appt.ID, cancelledAt); err != nil {
			return err
		}
		cancelled = appt
		return nil
	})
	if err != nil {
		metrics.IncTransition("cancel", "error")
		return nil, err
	}
	metrics.IncTransition("cancel", "ok")

	if fresh, err := s.store.GetAppointment(ctx, id); err == nil {
		cancelled = fresh
	} else {
		s.logger.Warn().Err(err).Str("appointment_id", id).Msg("refetch after cancel failed")
		cancelled.Status = models.StatusCancelled
		cancelled.CancelledAt = &cancelledAt
		cancelled.HasPendingReschedule = false
		cancelled.Version++
	}
	s.publishEvent(events.EventAppointmentCancelled, cancelled, "")
	s.enqueueSync(ctx, cancelled, worker.TaskUpdateStatus)
	s.invalidateSlots(ctx, cancelled.ProfessionalID)

	return cancelled, nil
}

// ProposeReschedule records a pending reschedule request for an appointment.
// Like creation it is optimistic and performs no conflict check; the check
// runs when the request is accepted. An appointment carries at most one
// pending request at a time.
func (s *AppointmentService) ProposeReschedule(ctx context.Context, appointmentID string, start, end time.Time, reason string) (*models.RescheduleRequest, error) {
	if err := s.validateInterval(start, end); err != nil {
		return nil, err
	}

	req := &models.RescheduleRequest{
		ID:            uuid.NewString(),
		AppointmentID: appointmentID,
		Start:         start,
		End:           end,
		Reason:        reason,
		Status:        models.RequestPending,
	}

	var appt *models.Appointment
	err := s.withRetry(ctx, func(tx *database.Tx) error {
		var err error
		appt, err = tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == models.StatusCancelled {
			return fmt.Errorf("%w: appointment is cancelled", database.ErrAlreadyResolved)
		}

		pending, err := tx.PendingRescheduleExists(ctx, appointmentID)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("%w: appointment %s", database.ErrPendingReschedule, appointmentID)
		}

		if err := tx.CreateRescheduleRequest(ctx, req); err != nil {
			return err
		}
		return tx.SetPendingReschedule(ctx, appointmentID, appt.Version, true)
	})
	if err != nil {
		metrics.IncTransition("propose_reschedule", "error")
		return nil, err
	}
	metrics.IncTransition("propose_reschedule", "ok")

	s.publishRequestEvent(events.EventRescheduleProposed, appt, req)
	return req, nil
}

// AcceptReschedule atomically resolves a pending request and replaces the
// appointment interval, with the same overlap check as confirmation applied
// to the proposed interval. On conflict the request stays pending.
func (s *AppointmentService) AcceptReschedule(ctx context.Context, requestID string) (*models.RescheduleRequest, error) {
	var req *models.RescheduleRequest
	var appt *models.Appointment

	err := s.withRetry(ctx, func(tx *database.Tx) error {
		var err error
		req, err = tx.GetRescheduleRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Resolved() {
			return fmt.Errorf("%w: request %s is %s", database.ErrAlreadyResolved, req.ID, req.Status)
		}

		appt, err = tx.GetAppointment(ctx, req.AppointmentID)
		if err != nil {
			return err
		}
		if appt.Status == models.StatusCancelled {
			return fmt.Errorf("%w: appointment is cancelled", database.ErrAlreadyResolved)
		}

		hits, err := tx.FindOverlapping(ctx, appt.ProfessionalID, req.ProposedInterval(), conflictStatuses, appt.ID)
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			return fmt.Errorf("%w: proposed interval overlaps %s %s", database.ErrConflictDetected, hits[0].Kind, hits[0].ID)
		}

		now := time.Now().UTC()
		if err := tx.ResolveRescheduleRequest(ctx, req.ID, models.RequestAccepted, now); err != nil {
			return err
		}
		return tx.ApplyReschedule(ctx, appt.ID, appt.Version, req.Start, req.End)
	})
	if err != nil {
		if errors.Is(err, database.ErrConflictDetected) {
			metrics.IncConflict()
			metrics.IncTransition("accept_reschedule", "conflict")
		} else {
			metrics.IncTransition("accept_reschedule", "error")
		}
		return nil, err
	}
	metrics.IncTransition("accept_reschedule", "ok")

	req.Status = models.RequestAccepted
	if fresh, err := s.store.GetAppointment(ctx, req.AppointmentID); err == nil {
		appt = fresh
	} else {
		s.logger.Warn().Err(err).Str("appointment_id", req.AppointmentID).Msg("refetch after reschedule failed")
		appt.Start = req.Start
		appt.End = req.End
		appt.HasPendingReschedule = false
		appt.Version++
	}
	s.publishRequestEvent(events.EventRescheduleAccepted, appt, req)
	s.enqueueSync(ctx, appt, worker.TaskUpsert)
	s.invalidateSlots(ctx, appt.ProfessionalID)

	return req, nil
}

// RejectReschedule resolves a pending request without touching the
// appointment interval.
func (s *AppointmentService) RejectReschedule(ctx context.Context, requestID string) (*models.RescheduleRequest, error) {
	var req *models.RescheduleRequest
	var appt *models.Appointment

	err := s.withRetry(ctx, func(tx *database.Tx) error {
		var err error
		req, err = tx.GetRescheduleRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Resolved() {
			return fmt.Errorf("%w: request %s is %s", database.ErrAlreadyResolved, req.ID, req.Status)
		}

		appt, err = tx.GetAppointment(ctx, req.AppointmentID)
		if err != nil {
			return err
		}

		if err := tx.ResolveRescheduleRequest(ctx, req.ID, models.RequestRejected, time.Now().UTC()); err != nil {
			return err
		}
		return tx.SetPendingReschedule(ctx, appt.ID, appt.Version, false)
	})
	if err != nil {
		metrics.IncTransition("reject_reschedule", "error")
		return nil, err
	}
	metrics.IncTransition("reject_reschedule", "ok")

	req.Status = models.RequestRejected
	s.publishRequestEvent(events.EventRescheduleRejected, appt, req)
	return req, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	return s.store.GetAppointment(ctx, id)
}

func (s *AppointmentService) GetRescheduleRequest(ctx context.Context, id string) (*models.RescheduleRequest, error) {
	return s.store.GetRescheduleRequest(ctx, id)
}

func (s *AppointmentService) ListAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Appointment, error) {
	return s.store.ListAppointments(ctx, professionalID, from, to)
}

// AddNote appends to the appointment's immutable note trail.
func (s *AppointmentService) AddNote(ctx context.Context, appointmentID, text, author string) (*models.Note, error) {
	if _, err := s.store.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	note := &models.Note{
		AppointmentID: appointmentID,
		Text:          text,
		Author:        author,
	}
	if err := s.store.AppendNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *AppointmentService) ListNotes(ctx context.Context, appointmentID string) ([]*models.Note, error) {
	return s.store.ListNotes(ctx, appointmentID)
}

// CreateBlock reserves personal time. Blocks occupy their interval exactly
// like Confirmed appointments but have no lifecycle.
func (s *AppointmentService) CreateBlock(ctx context.Context, block *models.Block) error {
	if block.ProfessionalID == "" {
		return fmt.Errorf("%w: professional id is required", database.ErrInvalidInterval)
	}
	if _, err := interval.New(block.Start, block.End); err != nil {
		return fmt.Errorf("%w: start must precede end", database.ErrInvalidInterval)
	}
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if err := s.store.CreateBlock(ctx, block); err != nil {
		return err
	}
	s.invalidateSlots(ctx, block.ProfessionalID)
	return nil
}

func (s *AppointmentService) DeleteBlock(ctx context.Context, id string) error {
	block, err := s.store.GetBlock(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, id); err != nil {
		return err
	}
	s.invalidateSlots(ctx, block.ProfessionalID)
	return nil
}

func (s *AppointmentService) ListBlocks(ctx context.Context, professionalID string, from, to time.Time) ([]*models.Block, error) {
	return s.store.ListBlocks(ctx, professionalID, from, to)
}

// checkClientAllowance throttles appointment requests per client identity.
// The counter lives in the slot cache so the window survives restarts when
// redis backs it. A throttle backend failure only logs.
func (s *AppointmentService) checkClientAllowance(ctx context.Context, appt *models.Appointment) error {
	if s.slotCache == nil || s.clientLimit <= 0 {
		return nil
	}
	key := appt.ClientPhone
	if key == "" {
		key = appt.ClientID
	}
	if key == "" {
		return nil
	}
	allowed, err := s.slotCache.CheckRateLimit(ctx, "requests:"+key, s.clientLimit, s.clientWindow)
	if err != nil {
		s.logger.Warn().Err(err).Msg("client throttle check failed")
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w: client %s", ErrRateLimited, key)
	}
	return nil
}

// withRetry re-runs fn when the store aborts under write contention. Once
// retries are exhausted the abort is reported as a conflict: the caller
// lost the race for the interval and should treat it like any other
// double-booking rejection.
func (s *AppointmentService) withRetry(ctx context.Context, fn func(tx *database.Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.retryPolicy.MaxRetries; attempt++ {
		err = s.store.WithTx(ctx, fn)
		if !errors.Is(err, database.ErrTransactionAborted) {
			return err
		}
		metrics.IncTxRetry()
		if attempt < s.retryPolicy.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryPolicy.NextDelay(attempt)):
			}
		}
	}
	return fmt.Errorf("%w: transaction kept aborting: %v", database.ErrConflictDetected, err)
}

func (s *AppointmentService) publishEvent(eventType string, appt *models.Appointment, requestID string) {
	if s.eventBus == nil || appt == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID:  appt.ID,
		ProfessionalID: appt.ProfessionalID,
		ClientID:       appt.ClientID,
		Status:         appt.Status,
		Start:          appt.Start,
		End:            appt.End,
		RequestID:      requestID,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("appointment_id", appt.ID).Msg("publish event error")
	}
}

func (s *AppointmentService) publishRequestEvent(eventType string, appt *models.Appointment, req *models.RescheduleRequest) {
	if appt == nil || req == nil {
		return
	}
	s.publishEvent(eventType, appt, req.ID)
}

func (s *AppointmentService) enqueueSync(ctx context.Context, appt *models.Appointment, taskType string) {
	if s.syncWorker == nil {
		return
	}
	var status models.Status
	if taskType == worker.TaskUpdateStatus {
		status = appt.Status
	}
	if err := s.syncWorker.EnqueueTask(ctx, taskType, appt.ID, appt, status); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Str("task", taskType).Msg("agenda enqueue error")
	}
}

func (s *AppointmentService) invalidateSlots(ctx context.Context, professionalID string) {
	if s.slotCache == nil {
		return
	}
	if err := s.slotCache.InvalidateSlots(ctx, professionalID); err != nil {
		s.logger.Warn().Err(err).Str("professional_id", professionalID).Msg("slot cache invalidation failed")
	}
}

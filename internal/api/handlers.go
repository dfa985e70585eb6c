package api

import (
	"net/http"
	"strconv"
	"strings"

	"courtside/internal/models"
	"courtside/internal/service"
)

const (
	userIDHeader  = "X-User-ID"
	guestIDHeader = "X-Guest-ID"
)

// owner identifies the customer a request acts for. Exactly one of the
// returned pointers is set, or both are nil when no identity was sent.
func owner(r *http.Request) (userID, guestID *string) {
	if v := strings.TrimSpace(r.Header.Get(userIDHeader)); v != "" {
		return &v, nil
	}
	if v := strings.TrimSpace(r.Header.Get(guestIDHeader)); v != "" {
		return nil, &v
	}
	return nil, nil
}

// ownerID returns the identity customer routes are scoped to.
func ownerID(r *http.Request) (*string, bool) {
	userID, guestID := owner(r)
	if userID != nil {
		return userID, true
	}
	return guestID, guestID != nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func requireDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "date is required")
		return "", false
	}
	return date, true
}

func (s *HTTPServer) handleListSports(w http.ResponseWriter, r *http.Request) {
	sports, err := s.svc.Sports.GetActiveSports(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sports": sports})
}

func (s *HTTPServer) handlePrice(w http.ResponseWriter, r *http.Request) {
	date, ok := requireDate(w, r)
	if !ok {
		return
	}
	sport := r.PathValue("sport")
	price, err := s.svc.Pricing.ResolvePrice(r.Context(), sport, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sport": sport, "date": date, "price": price})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := requireDate(w, r)
	if !ok {
		return
	}
	sport := r.PathValue("sport")
	slots, err := s.svc.Availability.GetAvailability(r.Context(), sport, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sport": sport, "date": date, "slots": slots})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.allowBooking(r, body.CustomerPhone) {
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many booking attempts for this phone number")
		return
	}

	req := body.toService()
	req.UserID, req.GuestID = owner(r)
	booking, err := s.svc.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleOwnerBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := ownerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "X-User-ID or X-Guest-ID header is required")
		return
	}
	bookings, err := s.svc.Bookings.GetOwnerBookings(r.Context(), *id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	who, ok := ownerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "X-User-ID or X-Guest-ID header is required")
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), id, who)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	who, ok := ownerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "X-User-ID or X-Guest-ID header is required")
		return
	}
	booking, err := s.svc.Bookings.Cancel(r.Context(), id, who)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRescheduleBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	who, ok := ownerID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "X-User-ID or X-Guest-ID header is required")
		return
	}
	var body rescheduleRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.svc.Bookings.Reschedule(r.Context(), id, who, service.RescheduleRequest{
		Date:      body.Date,
		StartTime: body.StartTime,
		Duration:  body.Duration,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateWalkIn(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.CreateWalkIn(r.Context(), body.toService(), actorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleDaySchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := requireDate(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.GetDaySchedule(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "bookings": bookings})
}

func (s *HTTPServer) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	booking, err := s.svc.Bookings.Confirm(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	booking, err := s.svc.Bookings.AdminCancel(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid booking id")
		return
	}
	var body paymentRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	booking, err := s.svc.Bookings.RecordPayment(r.Context(), id, body.toModel(), actorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	date, ok := requireDate(w, r)
	if !ok {
		return
	}
	blocks, err := s.svc.Blocks.ListBlocks(r.Context(), r.URL.Query().Get("sport"), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked_slots": blocks})
}

func (s *HTTPServer) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var body blockRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	block, err := s.svc.Blocks.CreateBlock(r.Context(), service.BlockRequest{
		Sport:     body.Sport,
		Date:      body.Date,
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
		Reason:    body.Reason,
	}, actorFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (s *HTTPServer) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid blocked slot id")
		return
	}
	if err := s.svc.Blocks.DeleteBlock(r.Context(), id, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCreateSport(w http.ResponseWriter, r *http.Request) {
	var body sportRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sport := body.toModel(0)
	if err := s.svc.Sports.CreateSport(r.Context(), sport, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sport)
}

func (s *HTTPServer) handleUpdateSport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid sport id")
		return
	}
	var body sportRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sport := body.toModel(id)
	if err := s.svc.Sports.UpdateSport(r.Context(), sport, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sport)
}

func (s *HTTPServer) handleDeactivateSport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid sport id")
		return
	}
	if err := s.svc.Sports.DeactivateSport(r.Context(), id, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListPricingRules(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid sport id")
		return
	}
	rules, err := s.svc.Sports.ListPricingRules(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pricing_rules": rules})
}

func (s *HTTPServer) handleCreatePricingRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid sport id")
		return
	}
	var body pricingRuleRequest
	if err := s.decodeAndValidate(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rule := body.toModel(id)
	if err := s.svc.Sports.CreatePricingRule(r.Context(), rule, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *HTTPServer) handleDeactivatePricingRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid pricing rule id")
		return
	}
	if err := s.svc.Sports.DeactivatePricingRule(r.Context(), id, actorFrom(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleFailedNotifications(w http.ResponseWriter, r *http.Request) {
	tasks := []models.NotificationTask{}
	if s.svc.Outbox != nil {
		failed, err := s.svc.Outbox.GetFailedNotificationTasks(r.Context())
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if failed != nil {
			tasks = failed
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": tasks})
}

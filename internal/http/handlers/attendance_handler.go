package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/service"
)

type AttendanceHandler struct {
	service *service.AttendanceService
	log     *zap.Logger
}

func NewAttendanceHandler(svc *service.AttendanceService, log *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{service: svc, log: log}
}

func (h *AttendanceHandler) Register(r chi.Router) {
	r.Post("/occurrences/{id}/attendance/today", h.handleQuickMark)
	r.Put("/occurrences/{id}/attendance/{date}", h.handleDetailedMark)
	r.Get("/occurrences/{id}/attendance/{date}", h.handleScopeRecords)
}

type markResponse struct {
	Count int `json:"count"`
}

type detailedMarkRequest struct {
	CourseID uuid.UUID             `json:"course_id"`
	Statuses []service.StatusInput `json:"statuses"`
}

type recordResponse struct {
	ID          uuid.UUID               `json:"id"`
	StudentID   uuid.UUID               `json:"student_id"`
	CourseID    uuid.UUID               `json:"course_id"`
	Date        string                  `json:"date"`
	Status      domain.AttendanceStatus `json:"status"`
	MarkedBy    uuid.UUID               `json:"marked_by"`
	TimetableID uuid.UUID               `json:"timetable_id"`
}

func (h *AttendanceHandler) handleQuickMark(w http.ResponseWriter, r *http.Request) {
	occurrenceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	count, err := h.service.MarkWholeClassToday(r.Context(), viewerOf(r), occurrenceID)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, markResponse{Count: count})
}

func (h *AttendanceHandler) handleDetailedMark(w http.ResponseWriter, r *http.Request) {
	occurrenceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	var req detailedMarkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "body", err.Error())
		return
	}

	count, err := h.service.MarkDetailed(r.Context(), viewerOf(r), service.DetailedMarkInput{
		OccurrenceID: occurrenceID,
		CourseID:     req.CourseID,
		Date:         date,
		Statuses:     req.Statuses,
	})
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markResponse{Count: count})
}

func (h *AttendanceHandler) handleScopeRecords(w http.ResponseWriter, r *http.Request) {
	occurrenceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}
	courseID, ok := queryUUID(w, r, "course_id")
	if !ok {
		return
	}
	if courseID == nil {
		writeBadRequest(w, "course_id", "is required")
		return
	}

	records, err := h.service.ScopeRecords(r.Context(), viewerOf(r), occurrenceID, *courseID, date)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	resp := make([]recordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, recordResponse{
			ID:          record.ID,
			StudentID:   record.StudentID,
			CourseID:    record.CourseID,
			Date:        record.Date.Format(domain.DateLayout),
			Status:      record.Status,
			MarkedBy:    record.MarkedBy,
			TimetableID: record.TimetableID,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func pathDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	date, err := domain.ParseDate(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, name, "must be a date (YYYY-MM-DD)")
		return time.Time{}, false
	}
	return date, true
}

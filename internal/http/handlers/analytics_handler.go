package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"service-schedule/internal/analytics"
	"service-schedule/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
	log     *zap.Logger
}

func NewAnalyticsHandler(svc *service.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc, log: log}
}

func (h *AnalyticsHandler) Register(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.Get("/summary", h.handleSummary)
		r.Get("/trends/weekly", h.handleWeekly)
		r.Get("/trends/monthly", h.handleMonthly)
		r.Get("/alerts", h.handleAlerts)
	})
}

func (h *AnalyticsHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(w, r)
	if !ok {
		return
	}
	summaries, err := h.service.Summary(r.Context(), viewerOf(r), filter)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	if summaries == nil {
		summaries = []analytics.CourseSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *AnalyticsHandler) handleWeekly(w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(w, r)
	if !ok {
		return
	}
	points, err := h.service.WeeklyTrend(r.Context(), viewerOf(r), filter)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *AnalyticsHandler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(w, r)
	if !ok {
		return
	}
	points, err := h.service.MonthlyTrend(r.Context(), viewerOf(r), filter)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *AnalyticsHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	filter, ok := analyticsFilter(w, r)
	if !ok {
		return
	}
	alerts, err := h.service.LowAttendanceAlerts(r.Context(), viewerOf(r), filter)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func analyticsFilter(w http.ResponseWriter, r *http.Request) (service.AnalyticsFilter, bool) {
	courseID, ok := queryUUID(w, r, "course_id")
	if !ok {
		return service.AnalyticsFilter{}, false
	}
	studentID, ok := queryUUID(w, r, "student_id")
	if !ok {
		return service.AnalyticsFilter{}, false
	}
	return service.AnalyticsFilter{CourseID: courseID, StudentID: studentID}, true
}

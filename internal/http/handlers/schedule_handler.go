package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"service-schedule/internal/domain"
	"service-schedule/internal/schedule"
	"service-schedule/internal/service"
)

type ScheduleHandler struct {
	service *service.ScheduleService
	log     *zap.Logger
}

func NewScheduleHandler(svc *service.ScheduleService, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: svc, log: log}
}

// Register mounts the schedule routes on r. r must already authenticate.
func (h *ScheduleHandler) Register(r chi.Router) {
	r.Post("/slots", h.handleCreateSlot)
	r.Put("/slots/{id}", h.handleUpdateSlot)
	r.Delete("/slots/{id}", h.handleDeleteSlot)
	r.Get("/schedule", h.handleListSchedule)
	r.Get("/schedule/grid", h.handleGrid)
}

type slotResponse struct {
	ID           uuid.UUID        `json:"id"`
	CourseID     uuid.UUID        `json:"course_id"`
	InstructorID uuid.UUID        `json:"instructor_id"`
	Day          domain.Weekday   `json:"day"`
	StartTime    domain.TimeOfDay `json:"start_time"`
	EndTime      domain.TimeOfDay `json:"end_time"`
	Room         string           `json:"room"`
}

// entryResponse is one element of a schedule listing. Kind is "slot" or
// "break"; slot-only fields are omitted for breaks.
type entryResponse struct {
	Kind         string           `json:"kind"`
	ID           *uuid.UUID       `json:"id,omitempty"`
	CourseID     *uuid.UUID       `json:"course_id,omitempty"`
	InstructorID *uuid.UUID       `json:"instructor_id,omitempty"`
	Name         string           `json:"name,omitempty"`
	Day          domain.Weekday   `json:"day"`
	StartTime    domain.TimeOfDay `json:"start_time"`
	EndTime      domain.TimeOfDay `json:"end_time"`
	Room         string           `json:"room,omitempty"`
}

type gridCellResponse struct {
	Day   domain.Weekday `json:"day"`
	Hour  int            `json:"hour"`
	Entry entryResponse  `json:"entry"`
}

func (h *ScheduleHandler) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req service.SlotInput
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "body", err.Error())
		return
	}

	slot, err := h.service.CreateSlot(r.Context(), viewerOf(r), req)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotResponse(slot))
}

func (h *ScheduleHandler) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req service.SlotInput
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "body", err.Error())
		return
	}

	slot, err := h.service.UpdateSlot(r.Context(), viewerOf(r), id, req)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlotResponse(slot))
}

func (h *ScheduleHandler) handleDeleteSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSlot(r.Context(), viewerOf(r), id); err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListEntries(r.Context(), viewerOf(r), days)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}

	resp := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toEntryResponse(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ScheduleHandler) handleGrid(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(w, r)
	if !ok {
		return
	}
	cells, err := h.service.Grid(r.Context(), viewerOf(r), days)
	if err != nil {
		writeServiceError(w, h.log, r, err)
		return
	}

	resp := make([]gridCellResponse, 0, len(cells))
	for _, cell := range cells {
		resp = append(resp, toGridCellResponse(cell))
	}
	writeJSON(w, http.StatusOK, resp)
}

func toSlotResponse(slot domain.Slot) slotResponse {
	return slotResponse{
		ID:           slot.ID,
		CourseID:     slot.CourseID,
		InstructorID: slot.InstructorID,
		Day:          slot.Day,
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
		Room:         slot.Room,
	}
}

func toEntryResponse(entry domain.ScheduleEntry) entryResponse {
	switch e := entry.(type) {
	case domain.Slot:
		return entryResponse{
			Kind:         "slot",
			ID:           &e.ID,
			CourseID:     &e.CourseID,
			InstructorID: &e.InstructorID,
			Day:          e.Day,
			StartTime:    e.StartTime,
			EndTime:      e.EndTime,
			Room:         e.Room,
		}
	case domain.BreakEntry:
		return entryResponse{
			Kind:      "break",
			Name:      e.Name,
			Day:       e.Day,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
		}
	default:
		panic("handlers: unknown schedule entry")
	}
}

func toGridCellResponse(cell schedule.GridCell) gridCellResponse {
	return gridCellResponse{
		Day:   cell.Day,
		Hour:  cell.Hour,
		Entry: toEntryResponse(cell.Entry),
	}
}

// queryDays parses ?days=monday,tue. An absent parameter yields nil, which
// selects the configured display days; an empty one yields no days.
func queryDays(w http.ResponseWriter, r *http.Request) ([]domain.Weekday, bool) {
	values, present := r.URL.Query()["days"]
	if !present {
		return nil, true
	}
	days := []domain.Weekday{}
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			day, err := domain.ParseWeekday(name)
			if err != nil {
				writeBadRequest(w, "days", err.Error())
				return nil, false
			}
			days = append(days, day)
		}
	}
	return days, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, name, "must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func queryUUID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, true
	}
	id, err := uuid.Parse(value)
	if err != nil {
		writeBadRequest(w, name, "must be a uuid")
		return nil, false
	}
	return &id, true
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/service"
	appErrors "github.com/campusops/timetable-api/pkg/errors"
	"github.com/campusops/timetable-api/pkg/response"
)

// CalendarHandler exposes holiday lookup and conflict checking.
type CalendarHandler struct {
	service *service.CalendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(svc *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// HolidayCheck godoc
// @Summary Check candidate slots against the holiday calendar
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.HolidayCheckRequest true "Candidate slots"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduling/holiday-check [post]
func (h *CalendarHandler) HolidayCheck(c *gin.Context) {
	var req dto.HolidayCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday check payload"))
		return
	}
	start, err := time.Parse("2006-01-02", req.SemesterStartDate)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester_start_date must be formatted YYYY-MM-DD"))
		return
	}
	warnings, err := h.service.CheckConflicts(c.Request.Context(), start, req.Slots)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.HolidayCheckResponse{Conflicts: warnings})
}

// Holidays godoc
// @Summary List holidays inside a date range
// @Tags Calendar
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduling/holidays [get]
func (h *CalendarHandler) Holidays(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be formatted YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be formatted YYYY-MM-DD"))
		return
	}
	if to.Before(from) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must not precede from"))
		return
	}
	holidays, err := h.service.Holidays(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"holidays": holidays})
}

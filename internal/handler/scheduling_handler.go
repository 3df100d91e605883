package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/campusops/timetable-api/internal/dto"
	"github.com/campusops/timetable-api/internal/models"
	"github.com/campusops/timetable-api/internal/service"
	appErrors "github.com/campusops/timetable-api/pkg/errors"
	"github.com/campusops/timetable-api/pkg/response"
)

type schedulingService interface {
	Submit(ctx context.Context, req dto.SchedulingRequest, submittedBy string) (*dto.SchedulingTaskResponse, error)
	ListTasks(ctx context.Context) ([]string, error)
	GetStatus(ctx context.Context, id string) (*dto.TaskStatusResponse, error)
}

// SchedulingHandler exposes the asynchronous timetabling endpoints.
type SchedulingHandler struct {
	service schedulingService
}

// NewSchedulingHandler constructs the handler.
func NewSchedulingHandler(svc *service.SchedulingService) *SchedulingHandler {
	return &SchedulingHandler{service: svc}
}

// Submit godoc
// @Summary Submit an automatic scheduling task
// @Description Validates the request, registers a task and starts solving in the background. Poll the task endpoint for the outcome.
// @Tags Scheduling
// @Accept json
// @Produce json
// @Param payload body dto.SchedulingRequest true "Scheduling request"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduling/auto [post]
func (h *SchedulingHandler) Submit(c *gin.Context) {
	var req dto.SchedulingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduling payload"))
		return
	}

	submittedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		submittedBy = claims.UserID
	}

	result, err := h.service.Submit(c.Request.Context(), req, submittedBy)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			response.ErrorWithData(c, err, gin.H{"violations": vErr.Violations})
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListTasks godoc
// @Summary List scheduling task ids
// @Tags Scheduling
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduling/tasks [get]
func (h *SchedulingHandler) ListTasks(c *gin.Context) {
	ids, err := h.service.ListTasks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	// Clients bind data directly to a string array.
	response.OK(c, ids)
}

// GetTask godoc
// @Summary Get the status of a scheduling task
// @Description PROCESSING tasks carry a runtime estimate, COMPLETED tasks the full timetable, FAILED tasks the failure reason.
// @Tags Scheduling
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /scheduling/tasks/{task_id} [get]
func (h *SchedulingHandler) GetTask(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

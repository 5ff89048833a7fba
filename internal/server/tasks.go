package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"sage/internal/planner"
	"sage/internal/supervisor"
)

// handleRunTask runs the pipeline for the task in the path.
func (s *Server) handleRunTask(c echo.Context) error {
	var req supervisor.TaskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid run request", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
	}

	res := s.deps.Pipeline.Run(c.Request().Context(), c.Param("id"), req)
	if res.Failed() {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: res.Error})
	}
	return c.JSON(http.StatusOK, res)
}

type CreateTaskRequest struct {
	Goal         string               `json:"goal"`
	TimelineDays int                  `json:"timeline_days"`
	Checkpoints  []planner.Checkpoint `json:"checkpoints"`
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
	}
	if req.Goal == "" {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("goal field is required"))
	}
	if req.TimelineDays < 0 {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("timeline_days must not be negative"))
	}
	task := s.deps.Tracker.CreateTask(c.Param("id"), req.Goal, req.TimelineDays, req.Checkpoints)
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.deps.Tracker.GetTask(c.Param("id"))
	if err != nil {
		return notFoundOr(c, err, planner.ErrTaskNotFound)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if !s.deps.Tracker.RemoveTask(c.Param("id")) {
		return errorJSON(c, http.StatusNotFound, fmt.Errorf("%w: %s", planner.ErrTaskNotFound, c.Param("id")))
	}
	return c.NoContent(http.StatusNoContent)
}

type UpdateCheckpointRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) handleUpdateCheckpoint(c echo.Context) error {
	var req UpdateCheckpointRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
	}
	completed := true
	if req.Completed != nil {
		completed = *req.Completed
	}
	taskID := c.Param("id")
	if err := s.deps.Tracker.UpdateCheckpoint(taskID, c.Param("cid"), completed); err != nil {
		return notFoundOr(c, err, planner.ErrTaskNotFound, planner.ErrCheckpointNotFound)
	}
	return c.JSON(http.StatusOK, s.deps.Tracker.CheckProgress(taskID))
}

func (s *Server) handleProgress(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Tracker.CheckProgress(c.Param("id")))
}

type CompleteResponse struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleComplete(c echo.Context) error {
	threshold := planner.DefaultCompletionThreshold
	if raw := c.QueryParam("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid threshold %q", raw))
		}
		threshold = v
	}
	return c.JSON(http.StatusOK, CompleteResponse{Completed: s.deps.Tracker.IsComplete(c.Param("id"), threshold)})
}

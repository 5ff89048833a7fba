package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type MemoryEntryResponse struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type SetMemoryRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleGetMemory(c echo.Context) error {
	key := c.Param("key")
	entry, ok := s.deps.Memory.Get(key)
	if !ok {
		return errorJSON(c, http.StatusNotFound, fmt.Errorf("no memory entry for key %q", key))
	}
	return c.JSON(http.StatusOK, MemoryEntryResponse{Key: key, Value: entry.Value, Timestamp: entry.Timestamp})
}

func (s *Server) handleSetMemory(c echo.Context) error {
	var req SetMemoryRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
	}
	key := c.Param("key")
	entry, err := s.deps.Memory.Set(key, req.Value)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, MemoryEntryResponse{Key: key, Value: entry.Value, Timestamp: entry.Timestamp})
}

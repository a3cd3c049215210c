package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/route"

	"daily-routine-service/internal/models"
	"daily-routine-service/internal/routine-manager/services"
	"daily-routine-service/internal/stats-worker/aggregators"
)

type RoutineHandler struct {
	Service         *services.RoutineService
	Stats           *aggregators.StatsTracker       // optional
	Achievements    *aggregators.AchievementTracker // optional
	TestModeAllowed bool
}

func NewRoutineHandler(svc *services.RoutineService, stats *aggregators.StatsTracker, achievements *aggregators.AchievementTracker, testModeAllowed bool) *RoutineHandler {
	return &RoutineHandler{Service: svc, Stats: stats, Achievements: achievements, TestModeAllowed: testModeAllowed}
}

// Register mounts the routine routes on g.
func (h *RoutineHandler) Register(g *route.RouterGroup) {
	g.GET("/active", h.GetActiveTask)
	g.GET("/tasks", h.GetTasks)
	g.POST("/tasks/:id/complete", h.CompleteTask)
	g.POST("/tasks/:id/skip", h.SkipTask)
	g.GET("/navigation", h.GetNavigation)
	g.GET("/stats", h.GetStats)

	testMode := g.Group("/test-mode", h.requireTestMode)
	{
		testMode.POST("", h.SetTestMode)
		testMode.PUT("/time", h.SetSimulatedTime)
		testMode.POST("/trigger/:id", h.TriggerTask)
	}
}

type SetTestModeRequest struct {
	Enabled *bool `json:"enabled"`
}

type SetSimulatedTimeRequest struct {
	Time string `json:"time"`
}

type ActiveTaskResponse struct {
	Active      bool                   `json:"active"`
	Task        *models.TaskDefinition `json:"task,omitempty"`
	Date        string                 `json:"date"`
	CurrentTime models.TimeOfDay       `json:"current_time"`
	TestMode    bool                   `json:"test_mode"`
	Path        string                 `json:"path,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
}

type ResolveResponse struct {
	TaskID       string        `json:"task_id"`
	Status       models.Status `json:"status"`
	ActiveTaskID string        `json:"active_task_id,omitempty"`
	Warning      string        `json:"warning,omitempty"`
}

func (h *RoutineHandler) GetActiveTask(ctx context.Context, c *app.RequestContext) {
	snap := h.Service.Snapshot()
	resp := ActiveTaskResponse{
		Date:        snap.Date,
		CurrentTime: snap.CurrentTime,
		TestMode:    snap.TestMode,
		Path:        snap.LastPath,
		Warning:     snap.Warning,
	}
	if task, ok := h.Service.ActiveTask(); ok {
		resp.Active = true
		resp.Task = &task
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoutineHandler) GetTasks(ctx context.Context, c *app.RequestContext) {
	snap := h.Service.Snapshot()
	c.JSON(http.StatusOK, utils.H{
		"date":           snap.Date,
		"active_task_id": snap.ActiveTaskID,
		"tasks":          h.Service.AllStatuses(),
	})
}

func (h *RoutineHandler) CompleteTask(ctx context.Context, c *app.RequestContext) {
	h.resolve(ctx, c, models.StatusChecked, h.Service.CompleteTask)
}

func (h *RoutineHandler) SkipTask(ctx context.Context, c *app.RequestContext) {
	h.resolve(ctx, c, models.StatusUnchecked, h.Service.SkipTask)
}

func (h *RoutineHandler) resolve(ctx context.Context, c *app.RequestContext, status models.Status, op func(context.Context, string) error) {
	id := c.Param("id")
	resp := ResolveResponse{TaskID: id, Status: status}
	if err := op(ctx, id); err != nil {
		var perr *models.PersistenceError
		if !errors.As(err, &perr) {
			writeError(c, err)
			return
		}
		hlog.Warnf("Task %s marked %s but not persisted: %v", id, status, err)
		resp.Warning = err.Error()
	}
	resp.ActiveTaskID = h.Service.Snapshot().ActiveTaskID
	c.JSON(http.StatusOK, resp)
}

func (h *RoutineHandler) GetNavigation(ctx context.Context, c *app.RequestContext) {
	snap := h.Service.Snapshot()
	c.JSON(http.StatusOK, utils.H{
		"path":           snap.LastPath,
		"navigations":    snap.Navigations,
		"active_task_id": snap.ActiveTaskID,
	})
}

func (h *RoutineHandler) GetStats(ctx context.Context, c *app.RequestContext) {
	var stats aggregators.Stats
	if h.Stats != nil {
		stats = h.Stats.Snapshot()
	}
	achievements := []aggregators.Achievement{}
	if h.Achievements != nil {
		achievements = h.Achievements.Unlocked()
	}
	c.JSON(http.StatusOK, utils.H{"stats": stats, "achievements": achievements})
}

func (h *RoutineHandler) requireTestMode(ctx context.Context, c *app.RequestContext) {
	if !h.TestModeAllowed {
		c.AbortWithStatusJSON(http.StatusForbidden, utils.H{"error": "Test mode is not allowed on this instance"})
		return
	}
	c.Next(ctx)
}

func (h *RoutineHandler) SetTestMode(ctx context.Context, c *app.RequestContext) {
	var req SetTestModeRequest
	if err := c.Bind(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if req.Enabled == nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: enabled is required"})
		return
	}
	if err := h.Service.EnableTestMode(ctx, *req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Service.Snapshot())
}

func (h *RoutineHandler) SetSimulatedTime(ctx context.Context, c *app.RequestContext) {
	var req SetSimulatedTimeRequest
	if err := c.Bind(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if err := h.Service.SetSimulatedTime(ctx, req.Time); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Service.Snapshot())
}

func (h *RoutineHandler) TriggerTask(ctx context.Context, c *app.RequestContext) {
	if err := h.Service.TriggerTask(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Service.Snapshot())
}

func writeError(c *app.RequestContext, err error) {
	var unknown *models.UnknownTaskError
	var perr *models.PersistenceError
	switch {
	case errors.As(err, &unknown):
		c.JSON(http.StatusNotFound, utils.H{"error": err.Error()})
	case errors.Is(err, models.ErrTaskResolved), errors.Is(err, models.ErrTestModeDisabled):
		c.JSON(http.StatusConflict, utils.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidTimeOfDay):
		c.JSON(http.StatusBadRequest, utils.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotStarted), errors.Is(err, models.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, utils.H{"error": err.Error()})
	case errors.As(err, &perr):
		c.JSON(http.StatusOK, utils.H{"warning": err.Error()})
	default:
		hlog.Errorf("Routine request failed: %v", err)
		c.JSON(http.StatusInternalServerError, utils.H{"error": err.Error()})
	}
}

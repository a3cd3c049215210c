package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daily-routine-service/internal/models"
	"daily-routine-service/internal/routine-manager/catalog"
	"daily-routine-service/internal/routine-manager/clock"
	"daily-routine-service/internal/routine-manager/events"
	"daily-routine-service/internal/routine-manager/services"
	"daily-routine-service/internal/routine-manager/store"
	"daily-routine-service/internal/stats-worker/aggregators"
)

type testApp struct {
	router *route.Engine
	svc    *services.RoutineService
	bus    *events.Bus
}

type failingSaveStore struct {
	*store.MemoryStatusStore
}

func (f failingSaveStore) Save(_ context.Context, date string, _ models.StatusSet) error {
	return &models.PersistenceError{Op: "save", Date: date, Err: errors.New("disk full")}
}

func setupTestApp(t *testing.T, at time.Time, testModeAllowed bool) *testApp {
	t.Helper()
	return setupTestAppWithStore(t, at, testModeAllowed, nil)
}

// setupTestAppWithStore builds the status store with newStore, or a memory store when nil.
func setupTestAppWithStore(t *testing.T, at time.Time, testModeAllowed bool, newStore func([]models.TaskDefinition) store.StatusStore) *testApp {
	t.Helper()
	c, err := catalog.New([]models.TaskDefinition{
		{ID: "wash", Name: "Wash hands", StartTime: models.MustTimeOfDay("07:00"), EndTime: models.MustTimeOfDay("07:30"), Period: models.PeriodMorning},
		{ID: "bath", Name: "Bath", StartTime: models.MustTimeOfDay("19:00"), EndTime: models.MustTimeOfDay("20:30"), Period: models.PeriodEvening},
	})
	require.NoError(t, err)

	hlog.SetLevel(hlog.LevelFatal)

	stats := aggregators.NewStatsTracker()
	achievements := aggregators.NewAchievementTracker(c, nil)
	registry := aggregators.NewRegistry()
	registry.Register(stats)
	registry.Register(achievements)
	bus := events.NewBus(8)
	require.NoError(t, bus.Subscribe("aggregators", registry.Dispatch))

	var st store.StatusStore = store.NewMemoryStatusStore(c.Tasks())
	if newStore != nil {
		st = newStore(c.Tasks())
	}
	svc := services.NewRoutineService(services.Options{
		Catalog: c,
		Store:   st,
		Clock:   clock.New(clockwork.NewFakeClockAt(at), time.UTC),
		Events:  bus,
	})
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() {
		svc.Close()
		bus.Close()
	})

	h := server.Default(
		server.WithHostPorts("127.0.0.1:0"),
		server.WithExitWaitTime(time.Duration(0)),
	)
	NewRoutineHandler(svc, stats, achievements, testModeAllowed).Register(h.Group("/routine"))
	return &testApp{router: h.Engine, svc: svc, bus: bus}
}

func (a *testApp) do(method, url string, body interface{}) *ut.ResponseRecorder {
	if body == nil {
		return ut.PerformRequest(a.router, method, url, nil)
	}
	payload, _ := json.Marshal(body)
	return ut.PerformRequest(a.router, method, url, &ut.Body{Body: bytes.NewReader(payload), Len: len(payload)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decode(t *testing.T, w *ut.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Result().Body(), out))
}

var morning = time.Date(2024, 5, 1, 7, 15, 0, 0, time.UTC)

func TestGetActiveTaskAPI(t *testing.T) {
	app := setupTestApp(t, morning, false)

	w := app.do("GET", "/routine/active", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	var resp ActiveTaskResponse
	decode(t, w, &resp)
	assert.True(t, resp.Active)
	require.NotNil(t, resp.Task)
	assert.Equal(t, "wash", resp.Task.ID)
	assert.Equal(t, "2024-05-01", resp.Date)
	assert.Equal(t, models.MustTimeOfDay("07:15"), resp.CurrentTime)
	assert.Equal(t, "/prompt", resp.Path)
}

func TestCompleteTaskAPI(t *testing.T) {
	app := setupTestApp(t, morning, false)

	w := app.do("POST", "/routine/tasks/wash/complete", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	var resp ResolveResponse
	decode(t, w, &resp)
	assert.Equal(t, "wash", resp.TaskID)
	assert.Equal(t, models.StatusChecked, resp.Status)
	assert.Empty(t, resp.ActiveTaskID)
	assert.Empty(t, resp.Warning)

	w = app.do("GET", "/routine/navigation", nil)
	var nav map[string]interface{}
	decode(t, w, &nav)
	assert.Equal(t, "/roadmap", nav["path"])
	assert.Equal(t, float64(2), nav["navigations"])

	w = app.do("GET", "/routine/tasks", nil)
	var list struct {
		Date  string              `json:"date"`
		Tasks []models.TaskStatus `json:"tasks"`
	}
	decode(t, w, &list)
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, models.StatusChecked, list.Tasks[0].Status)
	assert.Equal(t, models.StatusPending, list.Tasks[1].Status)

	var stats struct {
		Stats        aggregators.Stats         `json:"stats"`
		Achievements []aggregators.Achievement `json:"achievements"`
	}
	assert.Eventually(t, func() bool {
		w := app.do("GET", "/routine/stats", nil)
		if err := json.Unmarshal(w.Result().Body(), &stats); err != nil {
			return false
		}
		return stats.Stats.TotalCompleted == 1 && len(stats.Achievements) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, stats.Stats.MorningCompleted)
	assert.Equal(t, aggregators.AchievementFirstTask, stats.Achievements[0].ID)
}

func TestResolveTaskAPI_Errors(t *testing.T) {
	app := setupTestApp(t, morning, false)

	w := app.do("POST", "/routine/tasks/ghost/complete", nil)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode())

	w = app.do("POST", "/routine/tasks/wash/skip", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	w = app.do("POST", "/routine/tasks/wash/skip", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode(), "same status again is a no-op")
	w = app.do("POST", "/routine/tasks/wash/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode())
}

func TestTestModeAPI_Forbidden(t *testing.T) {
	app := setupTestApp(t, morning, false)

	w := app.do("POST", "/routine/test-mode", map[string]interface{}{"enabled": true})
	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode())
	assert.False(t, app.svc.Snapshot().TestMode)
}

func TestTestModeAPI_SimulatedTime(t *testing.T) {
	app := setupTestApp(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), true)

	w := app.do("PUT", "/routine/test-mode/time", map[string]interface{}{"time": "20:00"})
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode(), "test mode off")

	w = app.do("POST", "/routine/test-mode", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())

	w = app.do("POST", "/routine/test-mode", map[string]interface{}{"enabled": true})
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())

	w = app.do("PUT", "/routine/test-mode/time", map[string]interface{}{"time": "7pm"})
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())

	w = app.do("PUT", "/routine/test-mode/time", map[string]interface{}{"time": "20:00"})
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	var snap services.Snapshot
	decode(t, w, &snap)
	assert.True(t, snap.TestMode)
	assert.Equal(t, "bath", snap.ActiveTaskID)

	w = app.do("POST", "/routine/test-mode", map[string]interface{}{"enabled": false})
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	snap = services.Snapshot{}
	decode(t, w, &snap)
	assert.False(t, snap.TestMode)
	assert.Empty(t, snap.ActiveTaskID)
}

func TestTestModeAPI_Trigger(t *testing.T) {
	app := setupTestApp(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), true)

	w := app.do("POST", "/routine/test-mode/trigger/bath", nil)
	assert.Equal(t, http.StatusConflict, w.Result().StatusCode())

	app.do("POST", "/routine/test-mode", map[string]interface{}{"enabled": true})
	w = app.do("POST", "/routine/test-mode/trigger/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode())

	w = app.do("POST", "/routine/test-mode/trigger/bath", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	var snap services.Snapshot
	decode(t, w, &snap)
	assert.Equal(t, "bath", snap.ActiveTaskID)
	assert.Equal(t, "bath", snap.ManualTaskID)
}

func TestResolveTaskAPI_PersistenceFailureIsWarning(t *testing.T) {
	app := setupTestAppWithStore(t, morning, false, func(tasks []models.TaskDefinition) store.StatusStore {
		return failingSaveStore{MemoryStatusStore: store.NewMemoryStatusStore(tasks)}
	})

	w := app.do("POST", "/routine/tasks/wash/complete", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	var resp ResolveResponse
	decode(t, w, &resp)
	assert.Equal(t, "wash", resp.TaskID)
	assert.Equal(t, models.StatusChecked, resp.Status)
	assert.Empty(t, resp.ActiveTaskID)
	assert.Contains(t, resp.Warning, "disk full")

	w = app.do("GET", "/routine/tasks", nil)
	var list struct {
		Tasks []models.TaskStatus `json:"tasks"`
	}
	decode(t, w, &list)
	require.Len(t, list.Tasks, 2)
	assert.Equal(t, models.StatusChecked, list.Tasks[0].Status, "the change stands in memory")
}

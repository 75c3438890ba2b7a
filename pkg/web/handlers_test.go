package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kaizen-works/kaizen/pkg/generative"
	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/persistence/file"
	"github.com/kaizen-works/kaizen/pkg/roster"
	"github.com/kaizen-works/kaizen/pkg/services"
	"github.com/kaizen-works/kaizen/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const improvedText = `<工程名>自動取込</工程名><概要>OCR</概要><担当者>自動化</担当者><所要時間>5</所要時間><ツール>OCR</ツール><コスト></コスト>
<工程名>確認</工程名><概要>確認する</概要><担当者>田中</担当者><所要時間>15</所要時間><ツール></ツール><コスト></コスト>`

type unreachableGenerator struct{}

func (unreachableGenerator) Complete(context.Context, string, improvement.PromptContext) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

func setupTestApp(t *testing.T, generator improvement.GenerativeTextService) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	actors := roster.NewStatic(
		models.Actor{Name: "田中", HourlyRate: 2000},
		models.Actor{Name: "佐藤", HourlyRate: 3000},
	)
	orchestrator := improvement.NewOrchestrator(generator, actors, store)
	sessions := services.NewSessions(orchestrator, store, slog.Default())

	handlers := web.NewAPIHandlers(sessions, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Get("/health", handlers.HealthCheck)
	handlers.RegisterRoutes(app)

	return app
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		raw, ok := body.(string)
		if !ok {
			encoded, err := json.Marshal(body)
			require.NoError(t, err)

			raw = string(encoded)
		}

		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, respBody
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var value T

	require.NoError(t, json.Unmarshal(body, &value), string(body))

	return value
}

func openDraft(t *testing.T, app *fiber.App) string {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/sessions", web.OpenSessionRequest{Name: "請求書処理"})
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[services.SessionView](t, body).ID
}

func addStep(t *testing.T, app *fiber.App, sessionID string, req web.CreateStepRequest) models.Step {
	t.Helper()

	status, body := do(t, app, http.MethodPost, "/sessions/"+sessionID+"/steps", req)
	require.Equal(t, http.StatusCreated, status, string(body))

	return decode[models.Step](t, body)
}

func TestAPIHandlers_OpenSession(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, generative.Static{Text: improvedText})

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "new draft",
			body:           web.OpenSessionRequest{VersionID: "new", Name: "経費精算", Description: "月次"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "draft without name",
			body:           web.OpenSessionRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "unknown version",
			body:           web.OpenSessionRequest{VersionID: "1f1e2c52-1111-4a4a-9b9b-000000000000"},
			expectedStatus: http.StatusNotFound,
			expectedType:   "version_not_found",
		},
		{
			name:           "invalid json",
			body:           "{",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				problem := decode[map[string]any](t, body)
				assert.Equal(t, tt.expectedType, problem["type"])
			}
		})
	}
}

func TestAPIHandlers_SessionLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, generative.Static{Text: improvedText})
	id := openDraft(t, app)

	first := addStep(t, app, id, web.CreateStepRequest{Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30})
	require.NotNil(t, first.CostYen)
	assert.Equal(t, 1000, *first.CostYen)

	second := addStep(t, app, id, web.CreateStepRequest{Title: "入力", Assignee: "佐藤", TimeRequiredMinutes: 60})
	assert.Equal(t, 3000, *second.CostYen)

	status, body := do(t, app, http.MethodPost, "/sessions/"+id+"/steps", web.CreateStepRequest{Title: "", Assignee: "田中"})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	minutes := 45
	status, body = do(t, app, http.MethodPatch, "/sessions/"+id+"/steps/"+first.ID, web.UpdateStepRequest{TimeRequiredMinutes: &minutes})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, 1500, *decode[models.Step](t, body).CostYen)

	status, _ = do(t, app, http.MethodPatch, "/sessions/"+id+"/steps/missing", web.UpdateStepRequest{TimeRequiredMinutes: &minutes})
	assert.Equal(t, http.StatusNotFound, status)

	from, to := 0, 1
	status, body = do(t, app, http.MethodPost, "/sessions/"+id+"/steps/reorder", web.ReorderStepsRequest{From: &from, To: &to})
	require.Equal(t, http.StatusOK, status, string(body))

	view := decode[services.SessionView](t, body)
	require.Len(t, view.Current, 2)
	assert.Equal(t, "入力", view.Current[0].Title)
	assert.Equal(t, 105, view.Totals.TimeMinutes)
	assert.Equal(t, 4500, view.Totals.CostYen)

	status, _ = do(t, app, http.MethodPost, "/sessions/"+id+"/steps/reorder", web.ReorderStepsRequest{From: &from})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, app, http.MethodPatch, "/sessions/"+id, web.UpdateSessionRequest{Name: "請求書処理v2"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "請求書処理v2", decode[services.SessionView](t, body).Name)

	status, _ = do(t, app, http.MethodDelete, "/sessions/"+id+"/steps/"+second.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = do(t, app, http.MethodDelete, "/sessions/"+id+"/steps/"+second.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, app, http.MethodPost, "/sessions/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decode[services.SessionView](t, body).IsCompleted)

	status, _ = do(t, app, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = do(t, app, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "session_not_found", decode[map[string]any](t, body)["type"])
}

func TestAPIHandlers_ImproveSaveReopen(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, generative.Static{Text: improvedText})
	id := openDraft(t, app)

	addStep(t, app, id, web.CreateStepRequest{Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30})
	addStep(t, app, id, web.CreateStepRequest{Title: "入力", Assignee: "佐藤", TimeRequiredMinutes: 60})

	show := true
	status, body := do(t, app, http.MethodPost, "/sessions/"+id+"/comparison", web.ComparisonRequest{Show: &show})
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, _ = do(t, app, http.MethodPost, "/sessions/"+id+"/revert", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, app, http.MethodPost, "/sessions/"+id+"/improve", web.ImproveRequest{Instruction: "自動化を優先"})
	require.Equal(t, http.StatusOK, status, string(body))

	view := decode[services.SessionView](t, body)
	assert.Equal(t, improvement.StateImproved, view.State)
	require.NotNil(t, view.Comparison)
	assert.Equal(t, 78, view.Comparison.TimeSavedPct)
	assert.Equal(t, 88, view.Comparison.CostSavedPct)

	status, body = do(t, app, http.MethodPost, "/sessions/"+id+"/save", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	saved := decode[services.SessionView](t, body)
	require.NotEmpty(t, saved.ImprovedVersionID)

	status, body = do(t, app, http.MethodGet, "/versions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, decode[web.VersionsResponse](t, body).Total)

	status, body = do(t, app, http.MethodPost, "/sessions", web.OpenSessionRequest{VersionID: saved.ImprovedVersionID})
	require.Equal(t, http.StatusCreated, status, string(body))

	reopened := decode[services.SessionView](t, body)
	assert.Equal(t, "自動取込", reopened.Current[0].Title)

	status, body = do(t, app, http.MethodPost, "/sessions/"+reopened.ID+"/revert", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "受領", decode[services.SessionView](t, body).Current[0].Title)
}

func TestAPIHandlers_ImproveFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		generator      improvement.GenerativeTextService
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "untagged reply",
			generator:      generative.Static{Text: "申し訳ありません。"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "parse_error",
		},
		{
			name:           "model unreachable",
			generator:      unreachableGenerator{},
			expectedStatus: http.StatusBadGateway,
			expectedType:   "transport_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := setupTestApp(t, tt.generator)
			id := openDraft(t, app)
			addStep(t, app, id, web.CreateStepRequest{Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30})

			status, body := do(t, app, http.MethodPost, "/sessions/"+id+"/improve", nil)
			assert.Equal(t, tt.expectedStatus, status, string(body))
			assert.Equal(t, tt.expectedType, decode[map[string]any](t, body)["type"])

			status, body = do(t, app, http.MethodGet, "/sessions/"+id, nil)
			require.Equal(t, http.StatusOK, status)

			view := decode[services.SessionView](t, body)
			assert.Equal(t, improvement.StateIdle, view.State)
			assert.Equal(t, "受領", view.Current[0].Title)
		})
	}
}

func TestAPIHandlers_SaveEmptyDraft(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, generative.Echo{})

	status, body := do(t, app, http.MethodPost, "/sessions", web.OpenSessionRequest{Name: "空"})
	require.Equal(t, http.StatusCreated, status)

	id := decode[services.SessionView](t, body).ID

	status, body = do(t, app, http.MethodPost, "/sessions/"+id+"/save", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.NotEmpty(t, decode[services.SessionView](t, body).OriginalVersionID)
}

func TestAPIHandlers_HealthAndActors(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t, generative.Echo{})

	status, body := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", decode[map[string]any](t, body)["status"])

	status, body = do(t, app, http.MethodGet, "/actors", nil)
	require.Equal(t, http.StatusOK, status)

	actors := decode[map[string][]models.Actor](t, body)["actors"]
	assert.Len(t, actors, 2)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope every endpoint shares.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Planline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the shared envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Planline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerMemos(group, cfg.Engine)
	registerAlarms(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerFreeSlots(group, cfg.Engine)
	registerBulkEvents(group, cfg.Engine)
	registerRegularTasks(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") ||
		strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "out of range") ||
		strings.Contains(lowered, "must"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Planline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Workspace counts",
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
	}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		open := false
		tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{UserID: userID, Completed: &open})
		if err != nil {
			return nil, handleError(err)
		}
		memos, err := e.Repo.ListMemos(ctx, repo.MemoFilters{UserID: userID})
		if err != nil {
			return nil, handleError(err)
		}
		alarms, err := e.Repo.ListEnabledAlarmsByUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		events, err := e.Repo.ListEvents(ctx, repo.EventFilters{UserID: userID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: StatusResponse{
			OpenTasks:     len(tasks),
			Memos:         len(memos),
			EnabledAlarms: len(alarms),
			Events:        len(events),
		}}, nil
	})
}

func strOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:        strOr(input.Body.ID, ""),
			UserID:    strOr(input.Body.UserID, ""),
			Title:     input.Body.Title,
			Memo:      strOr(input.Body.Memo, ""),
			Deadline:  strOr(input.Body.Deadline, ""),
			StartAt:   strOr(input.Body.StartAt, ""),
			EndAt:     strOr(input.Body.EndAt, ""),
			Checklist: checklistFromRequest(input.Body.Checklist),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		UserID    string `query:"user_id"`
		Completed *bool  `query:"completed"`
		Limit     int    `query:"limit" minimum:"0" maximum:"500"`
		Cursor    string `query:"cursor" doc:"created_at|id of the last seen task"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		f := repo.TaskFilters{UserID: userID, Completed: input.Completed, Limit: input.Limit}
		if input.Cursor != "" {
			createdAt, id, ok := strings.Cut(input.Cursor, "|")
			if !ok {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			f.CursorCreatedAt, f.CursorID = createdAt, id
		}
		items, err := e.Repo.ListTasks(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:        input.TaskID,
			Title:     input.Body.Title,
			Memo:      input.Body.Memo,
			Deadline:  input.Body.Deadline,
			StartAt:   input.Body.StartAt,
			EndAt:     input.Body.EndAt,
			Checklist: checklistFromRequest(input.Body.Checklist),
			Completed: input.Body.Completed,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Mark task completed",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		done := true
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{ID: input.TaskID, Completed: &done})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-checklist-item",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/checklist/{index}/toggle",
		Summary:     "Toggle a checklist item",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Index  int    `path:"index" minimum:"0"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.ToggleChecklistItem(ctx, input.TaskID, input.Index)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMemos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-memo",
		Method:        http.MethodPost,
		Path:          "/memos",
		Summary:       "Create memo",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateMemoRequest `json:"body"`
	}) (*struct {
		Body domain.Memo `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		m, err := e.CreateMemo(ctx, engine.MemoCreateOptions{
			ID:     strOr(input.Body.ID, ""),
			UserID: strOr(input.Body.UserID, ""),
			Body:   input.Body.Body,
			Pinned: input.Body.Pinned,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Memo `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-memos",
		Method:      http.MethodGet,
		Path:        "/memos",
		Summary:     "List memos, pinned first",
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
		Pinned *bool  `query:"pinned"`
		Limit  int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.Memo `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		items, err := e.Repo.ListMemos(ctx, repo.MemoFilters{UserID: userID, Pinned: input.Pinned, Limit: input.Limit})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Memo `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-memo",
		Method:      http.MethodGet,
		Path:        "/memos/{memo_id}",
		Summary:     "Get memo",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemoID string `path:"memo_id"`
	}) (*struct {
		Body domain.Memo `json:"body"`
	}, error) {
		m, err := e.Repo.GetMemo(ctx, input.MemoID)
		if err != nil {
			return nil, handleError(err)
		}
		m.Attachments, err = e.Repo.ListAttachments(ctx, m.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Memo `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-memo",
		Method:      http.MethodPatch,
		Path:        "/memos/{memo_id}",
		Summary:     "Update memo",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemoID string            `path:"memo_id"`
		Body   UpdateMemoRequest `json:"body"`
	}) (*struct {
		Body domain.Memo `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		m, err := e.UpdateMemo(ctx, engine.MemoUpdateOptions{
			ID:     input.MemoID,
			Body:   input.Body.Body,
			Pinned: input.Body.Pinned,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Memo `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-memo",
		Method:      http.MethodDelete,
		Path:        "/memos/{memo_id}",
		Summary:     "Delete memo and its attachments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemoID string `path:"memo_id"`
	}) (*struct{}, error) {
		if err := e.DeleteMemo(ctx, input.MemoID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/memos/{memo_id}/attachments",
		Summary:       "Record attachment metadata",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MemoID string                  `path:"memo_id"`
		Body   CreateAttachmentRequest `json:"body"`
	}) (*struct {
		Body domain.Attachment `json:"body"`
	}, error) {
		a, err := e.AddAttachment(ctx, engine.AttachmentOptions{
			MemoID:      input.MemoID,
			Filename:    input.Body.Filename,
			ContentType: input.Body.ContentType,
			Size:        input.Body.Size,
			Path:        input.Body.Path,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Attachment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-attachment",
		Method:      http.MethodDelete,
		Path:        "/attachments/{attachment_id}",
		Summary:     "Remove attachment metadata",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		if err := e.RemoveAttachment(ctx, input.AttachmentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAlarms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-alarm",
		Method:        http.MethodPost,
		Path:          "/alarms",
		Summary:       "Create alarm",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAlarmRequest `json:"body"`
	}) (*struct {
		Body domain.Alarm `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		a, err := e.CreateAlarm(ctx, engine.AlarmCreateOptions{
			ID:         strOr(input.Body.ID, ""),
			UserID:     strOr(input.Body.UserID, ""),
			Label:      input.Body.Label,
			At:         input.Body.At,
			RepeatMask: input.Body.RepeatMask,
			Enabled:    input.Body.Enabled,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Alarm `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-alarms",
		Method:      http.MethodGet,
		Path:        "/alarms",
		Summary:     "List alarms",
	}, func(ctx context.Context, input *struct {
		UserID  string `query:"user_id"`
		Enabled *bool  `query:"enabled"`
	}) (*struct {
		Body []domain.Alarm `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		items, err := e.Repo.ListAlarms(ctx, repo.AlarmFilters{UserID: userID, Enabled: input.Enabled})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Alarm `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-alarm",
		Method:      http.MethodGet,
		Path:        "/alarms/{alarm_id}",
		Summary:     "Get alarm",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AlarmID string `path:"alarm_id"`
	}) (*struct {
		Body domain.Alarm `json:"body"`
	}, error) {
		a, err := e.Repo.GetAlarm(ctx, input.AlarmID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Alarm `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-alarm",
		Method:      http.MethodPatch,
		Path:        "/alarms/{alarm_id}",
		Summary:     "Update alarm",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AlarmID string             `path:"alarm_id"`
		Body    UpdateAlarmRequest `json:"body"`
	}) (*struct {
		Body domain.Alarm `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		a, err := e.UpdateAlarm(ctx, engine.AlarmUpdateOptions{
			ID:         input.AlarmID,
			Label:      input.Body.Label,
			At:         input.Body.At,
			RepeatMask: input.Body.RepeatMask,
			Enabled:    input.Body.Enabled,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Alarm `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-alarm",
		Method:      http.MethodDelete,
		Path:        "/alarms/{alarm_id}",
		Summary:     "Delete alarm",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AlarmID string `path:"alarm_id"`
	}) (*struct{}, error) {
		if err := e.DeleteAlarm(ctx, input.AlarmID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-event",
		Method:        http.MethodPost,
		Path:          "/events",
		Summary:       "Create event",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateEventRequest `json:"body"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		ev, err := e.CreateEvent(ctx, engine.EventCreateOptions{
			ID:      strOr(input.Body.ID, ""),
			UserID:  strOr(input.Body.UserID, ""),
			Title:   input.Body.Title,
			Memo:    strOr(input.Body.Memo, ""),
			Color:   strOr(input.Body.Color, ""),
			StartAt: input.Body.StartAt,
			EndAt:   input.Body.EndAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events overlapping a range",
	}, func(ctx context.Context, input *struct {
		UserID     string `query:"user_id"`
		RangeStart string `query:"range_start" format:"date-time"`
		RangeEnd   string `query:"range_end" format:"date-time"`
		Limit      int    `query:"limit" minimum:"0" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		items, err := e.Repo.ListEvents(ctx, repo.EventFilters{
			UserID:     userID,
			RangeStart: input.RangeStart,
			RangeEnd:   input.RangeEnd,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}",
		Summary:     "Get event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		ev, err := e.Repo.GetEvent(ctx, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-event",
		Method:      http.MethodPatch,
		Path:        "/events/{event_id}",
		Summary:     "Update event",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string             `path:"event_id"`
		Body    UpdateEventRequest `json:"body"`
	}) (*struct {
		Body domain.Event `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		ev, err := e.UpdateEvent(ctx, engine.EventUpdateOptions{
			ID:      input.EventID,
			Title:   input.Body.Title,
			Memo:    input.Body.Memo,
			Color:   input.Body.Color,
			StartAt: input.Body.StartAt,
			EndAt:   input.Body.EndAt,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Event `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-event",
		Method:      http.MethodDelete,
		Path:        "/events/{event_id}",
		Summary:     "Delete event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct{}, error) {
		if err := e.DeleteEvent(ctx, input.EventID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerFreeSlots(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "free-slots",
		Method:      http.MethodPost,
		Path:        "/free-slots",
		Summary:     "Extract free time slots",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body FreeSlotsRequest `json:"body"`
	}) (*struct {
		Body FreeSlotsResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		res, err := e.FindFreeSlots(ctx, engine.FreeSlotOptions{
			UserID:             strOr(input.Body.UserID, ""),
			RangeStart:         input.Body.RangeStart,
			RangeEnd:           input.Body.RangeEnd,
			Weekdays:           input.Body.Weekdays,
			WindowStart:        strOr(input.Body.WindowStart, ""),
			WindowEnd:          strOr(input.Body.WindowEnd, ""),
			MarginMinutes:      input.Body.MarginMinutes,
			MinDurationMinutes: input.Body.MinDurationMinutes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := FreeSlotsResponse{
			Slots:    make([]FreeSlotResponse, 0, len(res.Slots)),
			Text:     res.Text,
			Warnings: warningResponses(res.Warnings),
		}
		for _, s := range res.Slots {
			out.Slots = append(out.Slots, FreeSlotResponse{
				Start: s.Start.Format(time.RFC3339),
				End:   s.End.Format(time.RFC3339),
			})
		}
		return &struct {
			Body FreeSlotsResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerBulkEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "bulk-create-events",
		Method:      http.MethodPost,
		Path:        "/events/bulk",
		Summary:     "Compile a painted grid into events",
		Description: "Creates events sequentially. On partial failure the error details carry the created ids and the cursor to resume from.",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body BulkEventsRequest `json:"body"`
	}) (*struct {
		Body BulkEventsResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		grid, err := gridFromRequest(input.Body.Grid)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		res, err := e.BulkCreateEvents(ctx, strOr(input.Body.UserID, ""), grid, input.Body.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "partial_failure", err.Error(), map[string]any{
				"created_ids": res.CreatedIDs,
				"cursor":      res.Cursor,
			})
		}
		if res.CreatedIDs == nil {
			res.CreatedIDs = []string{}
		}
		return &struct {
			Body BulkEventsResponse `json:"body"`
		}{Body: BulkEventsResponse{CreatedIDs: res.CreatedIDs, Cursor: res.Cursor}}, nil
	})
}

func registerRegularTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "put-regular-task-config",
		Method:      http.MethodPut,
		Path:        "/regular-tasks/{type}",
		Summary:     "Set a checklist template",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type string                   `path:"type" enum:"DAILY,WEEKLY"`
		Body RegularTaskConfigRequest `json:"body"`
	}) (*struct {
		Body domain.RegularTaskConfig `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.UpsertRegularTaskConfig(ctx, strOr(input.Body.UserID, ""),
			domain.RegularTaskType(input.Type), checklistFromRequest(input.Body.Checklist))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RegularTaskConfig `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-regular-task-config",
		Method:      http.MethodGet,
		Path:        "/regular-tasks/{type}",
		Summary:     "Get a checklist template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type   string `path:"type" enum:"DAILY,WEEKLY"`
		UserID string `query:"user_id"`
	}) (*struct {
		Body domain.RegularTaskConfig `json:"body"`
	}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		c, err := e.Repo.GetRegularTaskConfig(ctx, userID, domain.RegularTaskType(input.Type))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RegularTaskConfig `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-regular-task-config",
		Method:      http.MethodDelete,
		Path:        "/regular-tasks/{type}",
		Summary:     "Delete a checklist template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type   string `path:"type" enum:"DAILY,WEEKLY"`
		UserID string `query:"user_id"`
	}) (*struct{}, error) {
		userID := input.UserID
		if userID == "" {
			userID = e.Config.DefaultUser
		}
		if err := e.Repo.DeleteRegularTaskConfig(ctx, userID, domain.RegularTaskType(input.Type)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "generate-regular-tasks",
		Method:      http.MethodPost,
		Path:        "/regular-tasks/generate",
		Summary:     "Materialize templates for today",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		created, err := e.GenerateRegularTasks(ctx, e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		if created == nil {
			created = []domain.Task{}
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: created}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/activity",
		Summary:     "Tail of the activity log",
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" minimum:"0" maximum:"500"`
		Cursor int64  `query:"cursor" doc:"id of the last seen entry"`
		UserID string `query:"user_id"`
		Type   string `query:"type"`
	}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		limit := input.Limit
		if limit == 0 {
			limit = 50
		}
		items, err := e.Repo.LatestActivity(ctx, limit, input.Cursor, input.UserID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})
}

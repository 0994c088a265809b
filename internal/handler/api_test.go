package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-api/internal/handler"
	"github.com/noah-isme/therapy-api/internal/models"
)

func TestAuthRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	status, body := srv.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "dewi@example.com",
		"password": "secret1",
		"fullName": "Dewi",
		"role":     "parent",
	})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, body.Success)

	status, body = srv.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "DEWI@example.com",
		"password": "secret1",
		"fullName": "Dewi Dua",
		"role":     "parent",
	})
	require.Equal(t, http.StatusConflict, status)
	require.False(t, body.Success)

	status, body = srv.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body.Details, "email")
	require.Contains(t, body.Details, "password")

	status, body = srv.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "dewi@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, status)
	unknownStatus, unknownBody := srv.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "ghost@example.com", "password": "wrong"})
	require.Equal(t, status, unknownStatus)
	require.Equal(t, body.Message, unknownBody.Message)

	status, body = srv.do(t, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "dewi@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	var signedIn struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &signedIn))

	status, body = srv.do(t, http.MethodGet, "/api/auth/me", signedIn.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var me struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &me))
	require.Equal(t, "dewi@example.com", me.Email)
	require.Equal(t, "parent", me.Role)

	status, _ = srv.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = srv.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestStudentRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	parent := srv.signup(t, "parent")
	stranger := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")

	status, _ := srv.do(t, http.MethodGet, "/api/students", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	// Parents are refused before the body is parsed.
	status, body := srv.do(t, http.MethodPost, "/api/students", parent.Token, "{not json")
	require.Equal(t, http.StatusForbidden, status)
	require.False(t, body.Success)

	status, body = srv.do(t, http.MethodPost, "/api/students", therapist.Token, map[string]string{
		"fullName":    "Budi",
		"dateOfBirth": "12/04/2016",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body.Details, "dateOfBirth")
	require.Contains(t, body.Details, "parentId")

	status, _ = srv.do(t, http.MethodPost, "/api/students", therapist.Token, "{not json")
	require.Equal(t, http.StatusBadRequest, status)

	studentID := srv.createStudent(t, therapist, parent)

	status, body = srv.do(t, http.MethodGet, "/api/students/"+studentID.String(), parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var student struct {
		FullName           string     `json:"full_name"`
		PrimaryTherapistID *uuid.UUID `json:"primary_therapist_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &student))
	require.Equal(t, "Budi", student.FullName)
	require.Equal(t, therapist.ID, *student.PrimaryTherapistID)

	status, _ = srv.do(t, http.MethodGet, "/api/students/"+studentID.String(), stranger.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodGet, "/api/students/"+uuid.NewString(), parent.Token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = srv.do(t, http.MethodGet, "/api/students/not-a-uuid", parent.Token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, body = srv.do(t, http.MethodGet, "/api/students", stranger.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(body.Data))

	status, body = srv.do(t, http.MethodPut, "/api/students/"+studentID.String(), therapist.Token, map[string]string{"emergencyContact": "0812"})
	require.Equal(t, http.StatusOK, status)
	var updated struct {
		FullName         string  `json:"full_name"`
		EmergencyContact *string `json:"emergency_contact"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	require.Equal(t, "Budi", updated.FullName)
	require.Equal(t, "0812", *updated.EmergencyContact)

	status, body = srv.do(t, http.MethodGet, "/api/students/"+studentID.String()+"/stats", parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"overall_progress":0,"active_goals":0,"completed_goals":0,"total_sessions":0}`, string(body.Data))
	statsKey := "handler-test:stats:" + studentID.String()
	require.True(t, srv.redis.Exists(statsKey))

	status, _ = srv.do(t, http.MethodPost, "/api/students/"+studentID.String()+"/progress", therapist.Token, map[string]interface{}{
		"focusArea":   "academic",
		"metricName":  "reading",
		"metricValue": 4,
	})
	require.Equal(t, http.StatusCreated, status)
	require.False(t, srv.redis.Exists(statsKey))

	status, body = srv.do(t, http.MethodGet, "/api/students/"+studentID.String()+"/stats", parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"overall_progress":4,"active_goals":0,"completed_goals":0,"total_sessions":0}`, string(body.Data))

	status, body = srv.do(t, http.MethodGet, "/api/students/"+studentID.String()+"/progress", parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var progress []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &progress))
	require.Len(t, progress, 1)

	status, _ = srv.do(t, http.MethodGet, "/api/students/parents", parent.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodGet, "/api/students/parents", therapist.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var parents []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &parents))
	require.Len(t, parents, 2)
}

func TestSessionRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	parent := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")
	other := srv.signup(t, "therapist")
	studentID := srv.createStudent(t, therapist, parent)

	status, body := srv.do(t, http.MethodPost, "/api/sessions", therapist.Token, map[string]interface{}{
		"studentId":       studentID.String(),
		"sessionDate":     "2026-03-02T09:00:00Z",
		"durationMinutes": 45,
		"focusArea":       "linguistic",
	})
	require.Equal(t, http.StatusCreated, status, body.Message)
	var session struct {
		ID          uuid.UUID `json:"id"`
		TherapistID uuid.UUID `json:"therapist_id"`
		Status      string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &session))
	require.Equal(t, therapist.ID, session.TherapistID)
	require.Equal(t, "scheduled", session.Status)

	status, body = srv.do(t, http.MethodPut, "/api/sessions/"+session.ID.String(), other.Token, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "session not found or unauthorized", body.Message)

	status, _ = srv.do(t, http.MethodPut, "/api/sessions/"+session.ID.String(), parent.Token, map[string]string{"status": "cancelled"})
	require.Equal(t, http.StatusForbidden, status)

	status, body = srv.do(t, http.MethodPut, "/api/sessions/"+session.ID.String(), therapist.Token, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body.Data, &session))
	require.Equal(t, "completed", session.Status)

	status, body = srv.do(t, http.MethodGet, "/api/sessions", parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &listed))
	require.Len(t, listed, 1)
}

func TestIEPRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	parent := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")
	other := srv.signup(t, "therapist")
	studentID := srv.createStudent(t, therapist, parent)

	plan := map[string]interface{}{
		"studentId": studentID.String(),
		"startDate": "2026-01-01",
		"endDate":   "2026-06-30",
		"goals": []map[string]interface{}{
			{"area": "linguistic", "goal": "Two-word phrases", "strategies": []string{"modelling"}},
		},
	}

	status, _ := srv.do(t, http.MethodPost, "/api/iep/plans", other.Token, plan)
	require.Equal(t, http.StatusForbidden, status)

	status, body := srv.do(t, http.MethodPost, "/api/iep/plans", therapist.Token, plan)
	require.Equal(t, http.StatusCreated, status, body.Message)
	var created struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &created))
	path := "/api/iep/plans/" + created.ID.String()

	status, _ = srv.do(t, http.MethodGet, path, parent.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodDelete, path, other.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodDelete, path, therapist.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = srv.do(t, http.MethodGet, path, therapist.Token, nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "iep plan not found", body.Message)
}

func TestAnalysisRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	parent := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")
	studentID := srv.createStudent(t, therapist, parent)
	target := map[string]string{"studentId": studentID.String()}

	status, _ := srv.do(t, http.MethodPost, "/api/ai/predict-progress", parent.Token, target)
	require.Equal(t, http.StatusForbidden, status)

	status, body := srv.do(t, http.MethodPost, "/api/ai/predict-progress", therapist.Token, target)
	require.Equal(t, http.StatusCreated, status, body.Message)
	var analysis struct {
		AnalysisType    string          `json:"analysis_type"`
		Results         json.RawMessage `json:"results"`
		ConfidenceScore *float64        `json:"confidence_score"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &analysis))
	require.JSONEq(t, `{"prediction":"steady","confidence":0.7}`, string(analysis.Results))
	require.NotNil(t, analysis.ConfidenceScore)

	status, body = srv.do(t, http.MethodPost, "/api/ai/detect-emotion", therapist.Token, map[string]string{
		"studentId": studentID.String(),
		"imageData": "%%%",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.False(t, body.Success)

	status, body = srv.do(t, http.MethodGet, "/api/ai/results/"+studentID.String(), parent.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var results []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &results))
	require.Len(t, results, 1)
}

func TestAnalysisUpstreamFailureIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(upstream.Close)

	srv := newTestServer(t, serverOptions{analyzer: newAIClient(t, upstream.URL)})
	parent := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")
	studentID := srv.createStudent(t, therapist, parent)

	status, body := srv.do(t, http.MethodPost, "/api/ai/detect-risk", therapist.Token, map[string]string{"studentId": studentID.String()})
	require.Equal(t, http.StatusBadGateway, status)
	require.Equal(t, "ai service unavailable", body.Message)

	var stored int64
	require.NoError(t, srv.db.Model(&models.AIAnalysisResult{}).Count(&stored).Error)
	require.Zero(t, stored)
}

func TestActivityRoutes(t *testing.T) {
	srv := newTestServer(t, serverOptions{})
	parent := srv.signup(t, "parent")
	therapist := srv.signup(t, "therapist")
	admin := srv.signup(t, "system_admin")
	studentID := srv.createStudent(t, therapist, parent)
	srv.createStudent(t, therapist, parent)

	status, _ := srv.do(t, http.MethodPost, "/api/students/"+studentID.String()+"/progress", therapist.Token, map[string]interface{}{
		"focusArea":   "emotional",
		"metricName":  "calm transitions",
		"metricValue": 2,
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = srv.do(t, http.MethodGet, "/api/admin/activity", therapist.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, body := srv.do(t, http.MethodGet, "/api/admin/activity?entity_type=student&page_size=10", admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var entries []struct {
		Action  string    `json:"action"`
		ActorID uuid.UUID `json:"actor_id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, "student.created", entries[0].Action)
	require.Equal(t, therapist.ID, entries[0].ActorID)
	require.JSONEq(t, `{"page":1,"page_size":10,"total_items":2,"total_pages":1}`, string(body.Meta))

	status, body = srv.do(t, http.MethodGet, "/api/admin/activity?student_id="+studentID.String(), admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var trail []struct {
		Action    string                 `json:"action"`
		StudentID uuid.UUID              `json:"student_id"`
		Metadata  map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &trail))
	require.Len(t, trail, 2)
	require.Equal(t, "progress.recorded", trail[0].Action)
	require.Equal(t, "student.created", trail[1].Action)
	for _, entry := range trail {
		require.Equal(t, studentID, entry.StudentID)
		correlation, ok := entry.Metadata["correlation_id"].(string)
		require.True(t, ok, entry.Action)
		_, err := uuid.Parse(correlation)
		require.NoError(t, err, entry.Action)
	}
	require.NotEqual(t, trail[0].Metadata["correlation_id"], trail[1].Metadata["correlation_id"])

	status, body = srv.do(t, http.MethodGet, "/api/admin/activity?entity_type=student&entity_id="+studentID.String(), admin.Token, nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"page":1,"page_size":25,"total_items":1,"total_pages":1}`, string(body.Meta))

	status, body = srv.do(t, http.MethodGet, "/api/admin/activity?entity_id=nope", admin.Token, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body.Details, "entity_id")

	status, body = srv.do(t, http.MethodGet, "/api/admin/activity?page=abc", admin.Token, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body.Details, "page")

	status, _ = srv.do(t, http.MethodGet, "/api/admin/activity?actor_id=nope", admin.Token, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestHealthRoutes(t *testing.T) {
	healthy := newTestServer(t, serverOptions{probes: []handler.HealthProbe{probe("database", nil)}})

	status, body := healthy.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)
	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, map[string]string{"database": "ok"}, payload.Dependencies)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := healthy.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "therapy-api-test", resp.Header.Get("X-Application"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	degraded := newTestServer(t, serverOptions{probes: []handler.HealthProbe{
		probe("database", nil),
		probe("redis", errors.New("connection refused")),
	}})
	status, body = degraded.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.False(t, body.Success)
	require.Equal(t, "service degraded", body.Message)
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	require.Equal(t, "degraded", payload.Status)
	require.Equal(t, "unavailable", payload.Dependencies["redis"])
}

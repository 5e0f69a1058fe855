// ABOUTME: HTTP tests for report ticket creation and administration
// ABOUTME: Covers the user-facing and admin-facing report surfaces

package server

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vaxassist/chatd/internal/store"
)

func TestCreateReport(t *testing.T) {
	env := newTestEnv(t)
	user, cookie := env.loginUser(t, "reporter@example.com")

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{
		"title":       "Stream cuts off",
		"description": "Answers stop mid-sentence on long questions",
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body["id"])
	require.Equal(t, user.ID, body["userId"])
	require.Equal(t, store.ReportStatusOpen, body["status"])
}

func TestCreateReport_MissingTitle(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginUser(t, "vague@example.com")

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{
		"description": "something is wrong",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyReports(t *testing.T) {
	env := newTestEnv(t)
	_, mine := env.loginUser(t, "mine@example.com")
	_, theirs := env.loginUser(t, "theirs@example.com")

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{"title": "mine"}, mine)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/reports", map[string]string{"title": "theirs"}, theirs)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/reports/mine", nil, mine)
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []map[string]any
	decodeBody(t, rec, &reports)
	require.Len(t, reports, 1)
	require.Equal(t, "mine", reports[0]["title"])
}

func TestListReports_AdminSeesAll(t *testing.T) {
	env := newTestEnv(t)
	_, userCookie := env.loginUser(t, "filer@example.com")
	_, adminCookie := env.loginAdmin(t, "triage@example.com")

	for _, title := range []string{"first", "second"} {
		rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{"title": title}, userCookie)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/reports", nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []map[string]any
	decodeBody(t, rec, &reports)
	require.Len(t, reports, 2)

	// Non-admins cannot list all reports
	rec = env.do(t, http.MethodGet, "/api/reports", nil, userCookie)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateReportStatus(t *testing.T) {
	env := newTestEnv(t)
	_, userCookie := env.loginUser(t, "filer@example.com")
	_, adminCookie := env.loginAdmin(t, "triage@example.com")

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{"title": "flaky"}, userCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decodeBody(t, rec, &created)
	id := created["id"].(string)

	rec = env.do(t, http.MethodPatch, "/api/reports/"+id+"/status", map[string]string{
		"status": store.ReportStatusResolved,
	}, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]any
	decodeBody(t, rec, &updated)
	require.Equal(t, store.ReportStatusResolved, updated["status"])
}

func TestUpdateReportStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	_, adminCookie := env.loginAdmin(t, "triage@example.com")

	rec := env.do(t, http.MethodPatch, "/api/reports/"+uuid.New().String()+"/status", map[string]string{
		"status": "escalated",
	}, adminCookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateReportStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, adminCookie := env.loginAdmin(t, "triage@example.com")

	rec := env.do(t, http.MethodPatch, "/api/reports/"+uuid.New().String()+"/status", map[string]string{
		"status": store.ReportStatusResolved,
	}, adminCookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteReport(t *testing.T) {
	env := newTestEnv(t)
	_, userCookie := env.loginUser(t, "reporter@example.com")
	_, adminCookie := env.loginAdmin(t, "triage@example.com")

	rec := env.do(t, http.MethodPost, "/api/reports", map[string]string{"title": "Duplicate"}, userCookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]any
	decodeBody(t, rec, &created)
	reportID := created["id"].(string)

	// Reporters cannot remove their own tickets
	rec = env.do(t, http.MethodDelete, "/api/reports/"+reportID, nil, userCookie)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/reports/"+reportID, nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/reports/"+reportID, nil, adminCookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

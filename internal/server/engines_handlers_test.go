// ABOUTME: HTTP tests for engine config administration
// ABOUTME: Covers CRUD, the single-active activation protocol, and role gating

package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createEngineViaAPI(t *testing.T, env *testEnv, cookie *http.Cookie, name, key string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/admin/engines", map[string]string{
		"name": name,
		"key":  key,
	}, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	require.Equal(t, false, body["active"])
	return body["id"].(string)
}

func TestCreateEngine(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	id := createEngineViaAPI(t, env, cookie, "GPT-4o", "gpt-4o")
	require.NotEmpty(t, id)
}

func TestCreateEngine_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	createEngineViaAPI(t, env, cookie, "GPT-4o", "gpt-4o")
	rec := env.do(t, http.MethodPost, "/api/admin/engines", map[string]string{
		"name": "GPT-4o",
		"key":  "gpt-4o",
	}, cookie)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEngine_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	rec := env.do(t, http.MethodPost, "/api/admin/engines", map[string]string{
		"name": "nameless key",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateEngine(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	id := createEngineViaAPI(t, env, cookie, "GPT-4o", "gpt-4o")

	rec := env.do(t, http.MethodPut, "/api/admin/engines/"+id, map[string]string{
		"name":        "GPT-4o mini",
		"key":         "gpt-4o-mini",
		"description": "cheaper tier",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	require.Equal(t, "GPT-4o mini", body["name"])
	require.Equal(t, "gpt-4o-mini", body["key"])
	require.Equal(t, "cheaper tier", body["description"])
}

func TestUpdateEngine_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	rec := env.do(t, http.MethodPut, "/api/admin/engines/"+uuid.New().String(), map[string]string{
		"name": "ghost",
		"key":  "ghost-key",
	}, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivateEngine(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	first := createEngineViaAPI(t, env, cookie, "First", "first-model")
	second := createEngineViaAPI(t, env, cookie, "Second", "second-model")

	rec := env.do(t, http.MethodPost, "/api/admin/engines/"+first+"/activate", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// Activating the second deactivates the first
	rec = env.do(t, http.MethodPost, "/api/admin/engines/"+second+"/activate", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	active, err := env.store.GetActiveEngineConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, second, active.ID)

	rec = env.do(t, http.MethodGet, "/api/admin/engines", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	decodeBody(t, rec, &list)
	activeCount := 0
	for _, cfg := range list {
		if cfg["active"] == true {
			activeCount++
		}
	}
	require.Equal(t, 1, activeCount)
}

func TestActivateEngine_UnknownLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	id := createEngineViaAPI(t, env, cookie, "Keeper", "keeper-model")
	rec := env.do(t, http.MethodPost, "/api/admin/engines/"+id+"/activate", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/engines/"+uuid.New().String()+"/activate", nil, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)

	active, err := env.store.GetActiveEngineConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, id, active.ID)
}

func TestDeleteEngine(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.loginAdmin(t, "admin@example.com")

	id := createEngineViaAPI(t, env, cookie, "Doomed", "doomed-model")

	rec := env.do(t, http.MethodDelete, "/api/admin/engines/"+id, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/admin/engines/"+id, nil, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngines_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, userCookie := env.loginUser(t, "pleb@example.com")

	rec := env.do(t, http.MethodGet, "/api/admin/engines", nil, userCookie)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/engines", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

package expense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/expense-tracker/internal/logging"
	"github.com/ayush/expense-tracker/internal/middleware"
	"github.com/ayush/expense-tracker/internal/models"
	"github.com/ayush/expense-tracker/internal/store"
)

type testEnv struct {
	router http.Handler
	alice  string
	bob    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	env := &testEnv{}
	for _, name := range []string{"alice", "bob"} {
		a := &models.Account{
			ID: uuid.NewString(), Username: name, Email: name + "@example.com",
			PasswordHash: "x", CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, db.CreateAccount(context.Background(), a))
		if name == "alice" {
			env.alice = a.ID
		} else {
			env.bob = a.ID
		}
	}

	log := logging.Discard()
	h := NewHandler(NewLedger(db, time.Second, log), log)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithAccountID(r.Context(), r.Header.Get("X-Account"))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Post("/api/expenses", h.Create)
	r.Get("/api/expenses", h.List)
	r.Put("/api/expenses/{id}", h.Update)
	r.Delete("/api/expenses/{id}", h.Delete)
	r.Get("/api/expense", h.Total)
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, account, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-Account", account)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeExpense(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestHandler_CreateAndList(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.alice, http.MethodPost, "/api/expenses",
		`{"description":"coffee","amount":3.5,"date":"2024-01-01","category":"food"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeExpense(t, w)
	assert.Equal(t, "coffee", created["description"])
	assert.Equal(t, "3.50", created["amount"])
	assert.Equal(t, "2024-01-01", created["date"])
	assert.Equal(t, env.alice, created["user_id"])

	w = env.do(t, env.alice, http.MethodPost, "/api/expenses",
		`{"name":"lunch","amount":"12.00","date":"2024-01-02"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "lunch", decodeExpense(t, w)["description"])

	w = env.do(t, env.alice, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, created["id"], list[0]["id"])

	w = env.do(t, env.bob, http.MethodGet, "/api/expenses", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHandler_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.alice, http.MethodPost, "/api/expenses", `{"description":"","amount":-1,"date":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeExpense(t, w)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Len(t, body["errors"], 3)

	for _, bad := range []string{`"abc"`, `true`} {
		w = env.do(t, env.alice, http.MethodPost, "/api/expenses",
			`{"description":"x","amount":`+bad+`,"date":"2024-01-01"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"message":"Validation failed","errors":[{"field":"amount","message":"must be a number"}]}`, w.Body.String())
	}

	w = env.do(t, env.alice, http.MethodPut, "/api/expenses/"+uuid.NewString(), `{"category":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"message":"Validation failed","errors":[{"field":"category","message":"must be a string"}]}`, w.Body.String())
}

func TestHandler_Update(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, env.alice, http.MethodPost, "/api/expenses", `{"description":"coffee","amount":3.5,"date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeExpense(t, w)["id"].(string)

	w = env.do(t, env.alice, http.MethodPut, "/api/expenses/"+id, `{"amount":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Message string                 `json:"message"`
		Expense map[string]interface{} `json:"expense"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Expense updated successfully", resp.Message)
	assert.Equal(t, "4.00", resp.Expense["amount"])
	assert.Equal(t, "coffee", resp.Expense["description"])

	w = env.do(t, env.alice, http.MethodPut, "/api/expenses/"+id, `{"date":"2024-13-01"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, env.alice, http.MethodPut, "/api/expenses/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_NotOwnedLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, env.alice, http.MethodPost, "/api/expenses", `{"description":"coffee","amount":3.5,"date":"2024-01-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeExpense(t, w)["id"].(string)

	missing := uuid.NewString()
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPut, "/api/expenses/" + id, `{"amount":1}`},
		{http.MethodDelete, "/api/expenses/" + id, ""},
		{http.MethodPut, "/api/expenses/" + missing, `{"amount":1}`},
		{http.MethodDelete, "/api/expenses/" + missing, ""},
		{http.MethodDelete, "/api/expenses/abc", ""},
	} {
		account := env.bob
		if strings.HasSuffix(tc.path, missing) || strings.HasSuffix(tc.path, "abc") {
			account = env.alice
		}
		w := env.do(t, account, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.method+" "+tc.path)
		assert.JSONEq(t, `{"message":"Expense not found"}`, w.Body.String())
	}

	w = env.do(t, env.alice, http.MethodGet, "/api/expenses", "")
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "3.50", list[0]["amount"])
}

func TestHandler_DeleteAndTotal(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.alice, http.MethodGet, "/api/expense", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalExpense":"0.00"}`, w.Body.String())

	var ids []string
	for _, amt := range []string{"12.50", "7.25"} {
		w := env.do(t, env.alice, http.MethodPost, "/api/expenses", `{"description":"x","amount":"`+amt+`","date":"2024-01-01"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decodeExpense(t, w)["id"].(string))
	}

	w = env.do(t, env.alice, http.MethodGet, "/api/expense", "")
	assert.JSONEq(t, `{"totalExpense":"19.75"}`, w.Body.String())

	w = env.do(t, env.alice, http.MethodDelete, "/api/expenses/"+ids[0], "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = env.do(t, env.alice, http.MethodGet, "/api/expense", "")
	assert.JSONEq(t, `{"totalExpense":"7.25"}`, w.Body.String())
}

func TestHandler_UnknownOwner(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, uuid.NewString(), http.MethodPost, "/api/expenses", `{"description":"x","amount":1,"date":"2024-01-01"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Account not found"}`, w.Body.String())
}

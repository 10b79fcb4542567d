package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/store"
	"expenses/internal/store/memory"
)

type RouterSuite struct {
	suite.Suite
	store  *memory.Store
	router *gin.Engine
}

func TestRouterSuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.store = memory.New([]string{"Food", "Transport"})
	food := int64(1)
	for _, d := range []core.Draft{
		{Description: "Lunch", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 5), CategoryID: &food},
		{Description: "Snacks", Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 2, 20)},
	} {
		_, err := s.store.CreateExpense(context.Background(), d)
		s.Require().NoError(err)
	}
	s.router = NewRouter(s.store, Config{}, applog.Discard())
}

func (s *RouterSuite) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *RouterSuite) TestListExpenses() {
	rec := s.do(http.MethodGet, "/api/expenses", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	got := decode[expenseList](s.T(), rec)
	s.Equal(2, got.Count)
	s.Equal(int64(1750), got.Total.Cents)
	s.Equal("Snacks", got.Expenses[0].Description)
	s.Equal("Food", got.Expenses[1].CategoryName())
}

func (s *RouterSuite) TestListExpensesFiltered() {
	rec := s.do(http.MethodGet, "/api/expenses?from=2024-02-01", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	got := decode[expenseList](s.T(), rec)
	s.Equal(1, got.Count)
	s.Equal(int64(500), got.Total.Cents)

	rec = s.do(http.MethodGet, "/api/expenses?to=nope", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestListCategories() {
	rec := s.do(http.MethodGet, "/api/categories", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	cats := decode[[]core.Category](s.T(), rec)
	s.Require().Len(cats, 2)
	s.Equal("Food", cats[0].Name)
}

func (s *RouterSuite) TestCreateExpense() {
	rec := s.do(http.MethodPost, "/api/expenses",
		`{"description":" Taxi ","amount":"30","date":"2024-02-10","category_id":2}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	got := decode[core.Expense](s.T(), rec)
	s.Equal("Taxi", got.Description)
	s.Equal(int64(3000), got.Amount.Cents)
	s.Equal("Transport", got.CategoryName())

	rec = s.do(http.MethodPost, "/api/expenses", `{"description":"Bus","amount":2.5,"date":"2024-02-11"}`)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Nil(decode[core.Expense](s.T(), rec).Category)
}

func (s *RouterSuite) TestCreateExpenseValidation() {
	rec := s.do(http.MethodPost, "/api/expenses", `{"description":"","amount":"0","date":"2024-02-30"}`)
	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](s.T(), rec)
	s.Equal("Failed to add expense.", body.Error)
	s.Equal("Description is required.", body.Fields[core.FieldDescription])
	s.Equal("Amount must be a number greater than zero.", body.Fields[core.FieldAmount])
	s.Contains(body.Fields, core.FieldDate)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/expenses", `{not json`).Code)
}

func (s *RouterSuite) TestCreateExpenseUnknownCategory() {
	rec := s.do(http.MethodPost, "/api/expenses", `{"description":"Taxi","amount":"30","date":"2024-02-10","category_id":99}`)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *RouterSuite) TestUpdateExpense() {
	rec := s.do(http.MethodPatch, "/api/expenses/1", `{"amount":"14.00"}`)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	got := decode[core.Expense](s.T(), rec)
	s.Equal(int64(1400), got.Amount.Cents)
	s.Equal("Lunch", got.Description)
	s.Equal("Food", got.CategoryName())

	rec = s.do(http.MethodPatch, "/api/expenses/1", `{"category_id":null}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Nil(decode[core.Expense](s.T(), rec).Category)
}

func (s *RouterSuite) TestUpdateExpenseErrors() {
	s.Equal(http.StatusNotFound, s.do(http.MethodPatch, "/api/expenses/99", `{"amount":"1"}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/api/expenses/1", `{}`).Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/api/expenses/x", `{"amount":"1"}`).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPatch, "/api/expenses/1", `{"amount":"-1"}`).Code)
	s.Equal(http.StatusUnprocessableEntity, s.do(http.MethodPatch, "/api/expenses/1", `{"description":"  "}`).Code)
}

func (s *RouterSuite) TestDeleteExpense() {
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/expenses/1", "").Code)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/expenses/1", "").Code, "delete is idempotent")

	all, err := s.store.ListExpenses(context.Background())
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *RouterSuite) TestExportCSV() {
	rec := s.do(http.MethodGet, "/api/expenses/export.csv?to=2024-01-31", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	s.Equal(`attachment; filename="expenses.csv"`, rec.Header().Get("Content-Disposition"))
	s.Equal("\uFEFFid,description,amount,category,date\n1,\"Lunch\",12.50,\"Food\",2024-01-05\n", rec.Body.String())

	rec = s.do(http.MethodGet, "/api/expenses/export.csv?from=2030-01-01", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBackendFailureIsBadGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(downGateway{memory.New(nil)}, Config{Locale: i18n.Arabic}, applog.Discard())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "فشل تحميل المصروفات.")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := corsConfig([]string{"https://app.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowOrigins)
	assert.True(t, corsConfig(nil).AllowAllOrigins)
}

type downGateway struct{ store.Gateway }

func (downGateway) ListExpenses(context.Context) ([]core.Expense, error) {
	return nil, core.NewBackendError("list expenses", errors.New("connection refused"))
}

func (downGateway) Ping(context.Context) error { return errors.New("connection refused") }

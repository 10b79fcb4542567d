package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/view"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Total    core.Money     `json:"total"`
	Count    int            `json:"count"`
}

// expenseRequest accepts the amount as a JSON number or numeric string.
type expenseRequest struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	CategoryID  *int64      `json:"category_id"`
}

func (r expenseRequest) form() view.Form {
	f := view.Form{
		Description: r.Description,
		Amount:      r.Amount.String(),
		Date:        r.Date,
	}
	if r.CategoryID != nil {
		f.CategoryID = strconv.FormatInt(*r.CategoryID, 10)
	}
	return f
}

func (h *Handler) health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, h.msgs.LoadCategoriesFailed)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	c.JSON(http.StatusOK, cats)
}

// filtered lists the expenses within the from/to query range.
func (h *Handler) filtered(c *gin.Context) ([]core.Expense, bool) {
	rng, err := core.ParseDateRange(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": h.msgs.InvalidFilter})
		return nil, false
	}
	all, err := h.svc.ListExpenses(c.Request.Context())
	if err != nil {
		h.fail(c, err, h.msgs.LoadExpensesFailed)
		return nil, false
	}
	return core.FilterByRange(all, rng), true
}

func (h *Handler) listExpenses(c *gin.Context) {
	items, ok := h.filtered(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, expenseList{Expenses: items, Total: core.Sum(items), Count: len(items)})
}

func (h *Handler) exportCSV(c *gin.Context) {
	items, ok := h.filtered(c)
	if !ok {
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": h.msgs.NothingToExport})
		return
	}
	var buf bytes.Buffer
	if err := view.WriteCSV(&buf, items, h.msgs); err != nil {
		h.fail(c, err, h.msgs.ExportFailed)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+view.CSVFilename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) createExpense(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := req.form().Draft()
	if err != nil {
		h.fail(c, err, h.msgs.AddFailed)
		return
	}
	created, err := h.svc.CreateExpense(c.Request.Context(), d)
	if err != nil {
		h.fail(c, err, h.msgs.AddFailed)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var p core.PartialDraft
	if err := c.ShouldBindJSON(&p); err != nil {
		if verr := fieldError(err); verr != nil {
			h.fail(c, verr, h.msgs.UpdateFailed)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if p.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty update"})
		return
	}
	if err := p.Validate(); err != nil {
		h.fail(c, err, h.msgs.UpdateFailed)
		return
	}
	updated, err := h.svc.UpdateExpense(c.Request.Context(), id, p)
	if err != nil {
		h.fail(c, err, h.msgs.UpdateFailed)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteExpense(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteExpense(c.Request.Context(), id); err != nil {
		h.fail(c, err, h.msgs.DeleteFailed)
		return
	}
	c.Status(http.StatusNoContent)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expense id"})
		return 0, false
	}
	return id, true
}

// fieldError turns a malformed amount or date in the body into a field
// error, or returns nil for any other decoding failure.
func fieldError(err error) *core.ValidationError {
	verr := &core.ValidationError{}
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		verr.Add(core.FieldAmount, err)
	case errors.Is(err, core.ErrInvalidDate):
		verr.Add(core.FieldDate, err)
	default:
		return nil
	}
	return verr
}

// fail writes err as JSON. Validation errors carry localized field messages;
// backend failures carry only msg.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg, "fields": h.msgs.FieldErrors(verr)})
		return
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
		return
	case errors.Is(err, core.ErrBackendValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": msg})
		return
	}
	ctx := c.Request.Context()
	logger := h.logger
	// Prefer the request-scoped logger, which carries the request id.
	if l := applog.FromContext(ctx); l.Component() == applog.ComponentAPI {
		logger = l
	}
	fields := applog.NewFields()
	fields[applog.FieldPath] = c.FullPath()
	applog.NewStructuredLogger(logger).LogError(ctx, "API request failed", err, operation(c.Request.Method), fields)
	status := http.StatusInternalServerError
	if errors.Is(err, core.ErrBackend) {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": msg})
}

func operation(method string) string {
	switch method {
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut, http.MethodPatch:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	default:
		return applog.OpRead
	}
}

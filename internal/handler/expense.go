package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"travelsync/internal/domain"
	"travelsync/internal/middleware"
	"travelsync/internal/service"
)

// ExpenseHandler handles HTTP requests for expenses.
type ExpenseHandler struct {
	expenseService *service.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenseService *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// CreateExpenseRequest is the HTTP request body for creating an expense.
type CreateExpenseRequest struct {
	Fields map[string]any `json:"fields"`
}

// UpdateExpenseRequest is the HTTP request body for updating an expense.
type UpdateExpenseRequest struct {
	BaseRevision int64          `json:"base_revision"`
	Fields       map[string]any `json:"fields"`
}

// ExpenseResponse is the HTTP representation of an expense.
type ExpenseResponse struct {
	ID        string  `json:"id"`
	TripID    string  `json:"trip_id,omitempty"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Category  string  `json:"category"`
	Date      string  `json:"date"`
	Revision  int64   `json:"revision"`
	UpdatedAt string  `json:"updated_at"`
}

// Create handles POST /v1/expenses
func (h *ExpenseHandler) Create(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	expense, err := h.expenseService.Create(c.Request.Context(), middleware.OwnerID(c), domain.FieldMap(req.Fields))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toExpenseResponse(expense))
}

// Get handles GET /v1/expenses/:id
func (h *ExpenseHandler) Get(c *gin.Context) {
	expense, err := h.expenseService.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toExpenseResponse(expense))
}

// List handles GET /v1/expenses
func (h *ExpenseHandler) List(c *gin.Context) {
	expenses, err := h.expenseService.List(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]ExpenseResponse, 0, len(expenses))
	for _, expense := range expenses {
		response = append(response, toExpenseResponse(expense))
	}

	respondJSON(c, http.StatusOK, response)
}

// Update handles PUT /v1/expenses/:id
func (h *ExpenseHandler) Update(c *gin.Context) {
	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	expense, err := h.expenseService.Update(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req.BaseRevision, domain.FieldMap(req.Fields))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toExpenseResponse(expense))
}

// Delete handles DELETE /v1/expenses/:id
func (h *ExpenseHandler) Delete(c *gin.Context) {
	if err := h.expenseService.Delete(c.Request.Context(), middleware.OwnerID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func toExpenseResponse(expense *domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:        expense.ID,
		TripID:    expense.TripID,
		Amount:    expense.Amount,
		Currency:  expense.Currency,
		Category:  string(expense.Category),
		Date:      expense.Date.Format(time.RFC3339),
		Revision:  expense.Revision,
		UpdatedAt: expense.UpdatedAt.Format(time.RFC3339),
	}
}

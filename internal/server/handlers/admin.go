package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andymarkow/smmstore/internal/adminflow"
	"github.com/andymarkow/smmstore/internal/errmsg"
	"github.com/andymarkow/smmstore/internal/pricing"
	"github.com/andymarkow/smmstore/internal/server/models"
	"github.com/andymarkow/smmstore/internal/storage"
)

func (h *Handlers) GetMarkup(w http.ResponseWriter, r *http.Request) {
	markup, err := h.admin.GetMarkup(r.Context())
	if err != nil {
		h.log.Error("adminflow.GetMarkup()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.MarkupResponse{
		MarkupAmount: markup.InexactFloat64(),
	})
}

func (h *Handlers) UpdateMarkup(w http.ResponseWriter, r *http.Request) {
	var payload models.MarkupRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return
		}

		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	if err := h.admin.SetMarkup(r.Context(), payload.MarkupAmount); err != nil {
		if errors.Is(err, pricing.ErrMarkupNegative) {
			h.log.Error("adminflow.SetMarkup()", slog.Any("error", err))
			handleError(w, errmsg.ErrMarkupInvalid)

			return
		}

		h.log.Error("adminflow.SetMarkup()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.MarkupResponse{
		MarkupAmount: payload.MarkupAmount.InexactFloat64(),
	})
}

func (h *Handlers) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var payload models.AdjustBalanceRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	adjType, err := adminflow.ParseAdjustmentType(payload.Type)
	if err != nil {
		h.log.Error("adminflow.ParseAdjustmentType()", slog.Any("error", err))
		handleError(w, errmsg.ErrAdjustmentInvalid)

		return
	}

	err = h.admin.AdjustBalance(r.Context(), payload.UserID, payload.Amount, adjType, payload.Description)
	if err != nil {
		switch {
		case errors.Is(err, adminflow.ErrAmountNotPositive):
			handleError(w, errmsg.ErrAdjustmentInvalid)

		case errors.Is(err, storage.ErrUserNotFound):
			handleError(w, errmsg.ErrUserNotFound)

		case errors.Is(err, adminflow.ErrInsufficientFunds):
			handleError(w, errmsg.ErrUserBalanceNotEnough)

		default:
			h.log.Error("adminflow.AdjustBalance()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))
		}

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

// ListAllOrders returns orders across all users, optionally filtered with
// one or more ?status= query parameters.
func (h *Handlers) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	statuses := r.URL.Query()["status"]

	allOrders, err := h.admin.ListOrders(r.Context(), statuses...)
	if err != nil {
		h.log.Error("adminflow.ListOrders()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.OrderResponse, 0, len(allOrders))
	for _, ord := range allOrders {
		resp = append(resp, models.OrderResponse{
			ID:            ord.ID,
			ServiceID:     ord.ServiceID,
			VendorOrderID: ord.VendorOrderID,
			Quantity:      ord.Quantity,
			UserPrice:     ord.UserPrice.InexactFloat64(),
			RealPrice:     ord.RealPrice.InexactFloat64(),
			Profit:        ord.Profit.InexactFloat64(),
			Status:        ord.Status,
			CreatedAt:     ord.CreatedAt.Format(time.RFC3339),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) RefreshOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		h.log.Error("strconv.ParseInt()", slog.Any("error", err))
		handleError(w, errmsg.ErrOrderNotFound)

		return
	}

	status, err := h.orders.RefreshStatus(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			handleError(w, errmsg.ErrOrderNotFound)

			return
		}

		h.log.Error("orderflow.RefreshStatus()", slog.Any("error", err))
		handleError(w, vendorHTTPError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.OrderStatusResponse{
		OrderID: orderID,
		Status:  status,
	})
}

func (h *Handlers) AdminUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.log.Error("strconv.ParseInt()", slog.Any("error", err))
		handleError(w, errmsg.ErrUserNotFound)

		return
	}

	txns, err := h.admin.UserTransactions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			handleError(w, errmsg.ErrUserNotFound)

			return
		}

		h.log.Error("adminflow.UserTransactions()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, transactionResponses(txns))
}

func (h *Handlers) ProfitReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.ProfitReport(r.Context())
	if err != nil {
		h.log.Error("adminflow.ProfitReport()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.ProfitReportResponse{
		Total: report.Total.InexactFloat64(),
		Today: report.Today.InexactFloat64(),
		Month: report.Month.InexactFloat64(),
	})
}

func (h *Handlers) VendorBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.vendor.Balance(r.Context())
	if err != nil {
		h.log.Error("vendor.Balance()", slog.Any("error", err))
		handleError(w, vendorHTTPError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.VendorBalanceResponse{
		Balance:  balance.Balance.InexactFloat64(),
		Currency: balance.Currency,
	})
}

func (h *Handlers) CatalogSync(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Sync(r.Context()); err != nil {
		h.log.Error("catalog.Sync()", slog.Any("error", err))
		handleError(w, vendorHTTPError(err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	allUsers, err := h.admin.ListUsers(r.Context())
	if err != nil {
		h.log.Error("adminflow.ListUsers()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.UserResponse, 0, len(allUsers))
	for _, user := range allUsers {
		resp = append(resp, models.UserResponse{
			ID:      user.ID,
			Name:    user.Name,
			Email:   user.Email,
			Balance: user.Balance.InexactFloat64(),
			IsAdmin: user.IsAdmin,
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

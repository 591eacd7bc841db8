package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/andymarkow/smmstore/internal/adminflow"
	"github.com/andymarkow/smmstore/internal/auth"
	"github.com/andymarkow/smmstore/internal/catalog"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/errmsg"
	"github.com/andymarkow/smmstore/internal/orderflow"
	"github.com/andymarkow/smmstore/internal/payments"
	"github.com/andymarkow/smmstore/internal/pricing"
	"github.com/andymarkow/smmstore/internal/server/models"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/vendor"
)

type Handlers struct {
	storage   storage.Storage
	log       *slog.Logger
	auth      *auth.JWTAuth
	orders    *orderflow.Service
	admin     *adminflow.Service
	catalog   *catalog.Syncer
	vendor    *vendor.Client
	payments  *payments.Client
	processor *payments.Processor
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(store storage.Storage, opts ...Option) *Handlers {
	handlers := &Handlers{
		storage: store,
		log:     slog.New(&slog.JSONHandler{}),
		auth:    auth.NewJWTAuth([]byte("")),
	}

	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger
	}
}

func WithAuth(auth *auth.JWTAuth) Option {
	return func(h *Handlers) {
		h.auth = auth
	}
}

func WithOrderFlow(orders *orderflow.Service) Option {
	return func(h *Handlers) {
		h.orders = orders
	}
}

func WithAdminFlow(admin *adminflow.Service) Option {
	return func(h *Handlers) {
		h.admin = admin
	}
}

func WithCatalog(syncer *catalog.Syncer) Option {
	return func(h *Handlers) {
		h.catalog = syncer
	}
}

func WithVendor(client *vendor.Client) Option {
	return func(h *Handlers) {
		h.vendor = client
	}
}

func WithPaymentsClient(client *payments.Client) Option {
	return func(h *Handlers) {
		h.payments = client
	}
}

func WithPaymentsProcessor(processor *payments.Processor) Option {
	return func(h *Handlers) {
		h.processor = processor
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// userIDFromContext reads the authenticated user id from the verified JWT.
func userIDFromContext(r *http.Request) (int64, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, err
	}

	userID, err := auth.ParseUserID(token.Subject())
	if err != nil {
		return 0, err
	}

	return userID, nil
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		h.log.Error("storage.Ping", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) UserRegister(w http.ResponseWriter, r *http.Request) {
	var payload models.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadEmpty)

			return
		}

		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))

		return
	}

	defer r.Body.Close()

	user, err := users.CreateUser(payload.Name, payload.Email, payload.Password, payload.ConfirmPassword)
	if err != nil {
		h.log.Error("users.CreateUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusUnprocessableEntity, err))

		return
	}

	userID, err := h.storage.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.log.Error("storage.CreateUser()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserAlreadyExists)

			return
		}

		h.log.Error("storage.CreateUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	token, err := h.auth.CreateJWTString(userID, user.IsAdmin)
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

func (h *Handlers) UserLogin(w http.ResponseWriter, r *http.Request) {
	var payload models.LoginRequest

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

	user, err := h.storage.GetUserByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.log.Error("storage.GetUserByEmail()", slog.Any("error", err))
			handleError(w, errmsg.ErrUserCredentialsInvalid)

			return
		}

		h.log.Error("storage.GetUserByEmail()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if err := user.CheckPassword(payload.Password); err != nil {
		h.log.Error("user.CheckPassword()", slog.Any("error", err))
		handleError(w, errmsg.ErrUserCredentialsInvalid)

		return
	}

	token, err := h.auth.CreateJWTString(user.ID, user.IsAdmin)
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: token})
}

// ListServices renders the catalog with user-facing prices: vendor rate plus
// the current markup, read from the store on every request.
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := h.catalog.EnsureCatalog(r.Context())
	if err != nil {
		h.log.Error("catalog.EnsureCatalog()", slog.Any("error", err))
		handleError(w, vendorHTTPError(err))

		return
	}

	markup, err := h.storage.GetMarkup(r.Context())
	if err != nil {
		h.log.Error("storage.GetMarkup()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	resp := make([]models.ServiceResponse, 0, len(svcs))
	for _, svc := range svcs {
		resp = append(resp, models.ServiceResponse{
			ID:       svc.ID,
			Name:     svc.Name,
			Category: svc.Category,
			Rate:     pricing.UserRate(svc.Rate, markup).InexactFloat64(),
			Min:      svc.Min,
			Max:      svc.Max,
			Refill:   svc.Refill,
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("userIDFromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	var payload models.CreateOrderRequest

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

	placement, err := h.orders.PlaceOrder(r.Context(), userID, payload.ServiceID, payload.Quantity, payload.Link)
	if err != nil {
		h.log.Error("orderflow.PlaceOrder()", slog.Any("error", err))
		handleError(w, placementHTTPError(err))

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.CreateOrderResponse{
		OrderID:       placement.OrderID,
		VendorOrderID: placement.VendorOrderID,
		UserPrice:     placement.UserPrice.InexactFloat64(),
		Status:        placement.Status,
	})
}

// placementHTTPError maps order placement failures to HTTP errors.
func placementHTTPError(err error) errmsg.HTTPError {
	switch {
	case errors.Is(err, storage.ErrServiceNotFound):
		return errmsg.ErrServiceNotFound
	case errors.Is(err, orderflow.ErrQuantityInvalid):
		return errmsg.ErrOrderQuantityInvalid
	case errors.Is(err, orderflow.ErrLinkEmpty):
		return errmsg.ErrOrderLinkEmpty
	case errors.Is(err, orderflow.ErrInsufficientBalance):
		return errmsg.ErrUserBalanceNotEnough
	default:
		return vendorHTTPError(err)
	}
}

func vendorHTTPError(err error) errmsg.HTTPError {
	switch {
	case errors.Is(err, vendor.ErrVendor):
		return errmsg.ErrVendorFailed
	case errors.Is(err, vendor.ErrVendorUnavailable):
		return errmsg.ErrVendorUnavailable
	default:
		return errmsg.NewHTTPError(http.StatusInternalServerError, err)
	}
}

func (h *Handlers) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("userIDFromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	userOrders, err := h.orders.UserOrders(r.Context(), userID)
	if err != nil {
		h.log.Error("orderflow.UserOrders()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	if len(userOrders) == 0 {
		handleJSONResponse(w, http.StatusNoContent, []models.OrderResponse{})

		return
	}

	resp := make([]models.OrderResponse, 0, len(userOrders))
	for _, ord := range userOrders {
		resp = append(resp, models.OrderResponse{
			ID:            ord.ID,
			ServiceID:     ord.ServiceID,
			VendorOrderID: ord.VendorOrderID,
			Quantity:      ord.Quantity,
			UserPrice:     ord.UserPrice.InexactFloat64(),
			Status:        ord.Status,
			CreatedAt:     ord.CreatedAt.Format(time.RFC3339),
		})
	}

	handleJSONResponse(w, http.StatusOK, resp)
}

// GetUserBalance always reads the authoritative balance from the store.
func (h *Handlers) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("userIDFromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	user, err := h.storage.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			handleError(w, errmsg.ErrUserNotFound)

			return
		}

		h.log.Error("storage.GetUserByID()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, models.UserBalanceResponse{
		Balance: user.Balance.InexactFloat64(),
	})
}

func (h *Handlers) GetUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("userIDFromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	txns, err := h.storage.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("storage.GetTransactionsByUser()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	// Profit rows are platform bookkeeping, not balance movements; the
	// user-facing ledger drops them so its sum matches the balance. The
	// admin listing keeps them.
	visible := make([]*transactions.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.Type == transactions.TypeProfit {
			continue
		}

		visible = append(visible, txn)
	}

	handleJSONResponse(w, http.StatusOK, transactionResponses(visible))
}

func (h *Handlers) Recharge(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		h.log.Error("userIDFromContext()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	var payload models.RechargeRequest

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("json.NewDecoder().Decode()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}

	defer r.Body.Close()

	if !payload.Amount.IsPositive() {
		handleError(w, errmsg.ErrRechargeAmountInvalid)

		return
	}

	// Crypto methods go through the payment processor; everything else is
	// credited immediately and settled out of band with support.
	if strings.Contains(strings.ToUpper(payload.PaymentMethod), "USDT") {
		invoice, err := h.payments.CreatePayment(r.Context(), userID, payload.Amount, payCurrency(payload.PaymentMethod))
		if err != nil {
			h.log.Error("payments.CreatePayment()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusBadGateway, err))

			return
		}

		handleJSONResponse(w, http.StatusOK, models.RechargeResponse{
			PaymentID:   invoice.PaymentID.String(),
			PayAddress:  invoice.PayAddress,
			PayAmount:   invoice.PayAmount.InexactFloat64(),
			PayCurrency: strings.ToUpper(invoice.PayCurrency),
			OrderID:     invoice.OrderID,
		})

		return
	}

	if err := h.processor.ManualRecharge(r.Context(), userID, payload.Amount, payload.PaymentMethod); err != nil {
		h.log.Error("payments.ManualRecharge()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

// payCurrency maps a method label to the processor currency code:
// "USDT TRC20" becomes "usdttrc20".
func payCurrency(method string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(method) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// PaymentsWebhook ingests payment processor notifications. Signature
// verification failures reject with no mutation.
func (h *Handlers) PaymentsWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error("io.ReadAll()", slog.Any("error", err))
		handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))

		return
	}

	defer r.Body.Close()

	signature := r.Header.Get("x-nowpayments-sig")

	if err := h.processor.HandleNotification(r.Context(), body, signature); err != nil {
		switch {
		case errors.Is(err, payments.ErrSignatureMissing), errors.Is(err, payments.ErrSignatureMismatch):
			h.log.Error("payments.HandleNotification()", slog.Any("error", err))
			handleError(w, errmsg.ErrWebhookSignatureInvalid)

		case errors.Is(err, payments.ErrPayloadInvalid):
			h.log.Error("payments.HandleNotification()", slog.Any("error", err))
			handleError(w, errmsg.ErrRequestPayloadInvalid)

		default:
			h.log.Error("payments.HandleNotification()", slog.Any("error", err))
			handleError(w, errmsg.NewHTTPError(http.StatusInternalServerError, err))
		}

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func transactionResponses(txns []*transactions.Transaction) []models.TransactionResponse {
	resp := make([]models.TransactionResponse, 0, len(txns))

	for _, txn := range txns {
		resp = append(resp, models.TransactionResponse{
			ID:          txn.ID,
			OrderID:     txn.OrderID,
			Type:        string(txn.Type),
			Amount:      txn.Amount.InexactFloat64(),
			Description: txn.Description,
			CreatedAt:   txn.CreatedAt.Format(time.RFC3339),
		})
	}

	return resp
}

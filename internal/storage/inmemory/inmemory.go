package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/orders"
	"github.com/andymarkow/smmstore/internal/domain/services"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/storage"
)

var _ storage.Storage = (*Storage)(nil)

// Storage keeps the whole ledger in process memory behind a single mutex.
// Single-writer semantics stand in for the row-level atomicity the SQL
// implementation gets from conditional updates.
type Storage struct {
	mu sync.Mutex

	users        map[int64]*users.User
	services     map[int64]*services.Service
	orders       map[int64]*orders.Order
	transactions []*transactions.Transaction
	intents      map[string]*intents.OrderIntent
	payments     map[string]struct{}
	markup       decimal.Decimal

	nextUserID    int64
	nextServiceID int64
	nextOrderID   int64
	nextTxnID     int64
}

func NewStorage() *Storage {
	return &Storage{
		users:         make(map[int64]*users.User),
		services:      make(map[int64]*services.Service),
		orders:        make(map[int64]*orders.Order),
		transactions:  make([]*transactions.Transaction, 0),
		intents:       make(map[string]*intents.OrderIntent),
		payments:      make(map[string]struct{}),
		markup:        decimal.Zero,
		nextUserID:    1,
		nextServiceID: 1,
		nextOrderID:   1,
		nextTxnID:     1,
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

func (s *Storage) CreateUser(_ context.Context, usr *users.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == usr.Email {
			return 0, storage.ErrUserAlreadyExists
		}
	}

	stored := *usr
	stored.ID = s.nextUserID
	s.nextUserID++

	s.users[stored.ID] = &stored

	return stored.ID, nil
}

func (s *Storage) GetUserByID(_ context.Context, id int64) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	u := *usr

	return &u, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, usr := range s.users {
		if usr.Email == email {
			u := *usr

			return &u, nil
		}
	}

	return nil, storage.ErrUserNotFound
}

func (s *Storage) ListUsers(_ context.Context) ([]*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*users.User, 0, len(s.users))

	for _, usr := range s.users {
		u := *usr
		list = append(list, &u)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list, nil
}

func (s *Storage) DebitUserBalance(_ context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	if usr.Balance.LessThan(amount) {
		return storage.ErrUserBalanceNotEnough
	}

	usr.Balance = usr.Balance.Sub(amount)
	s.appendTransaction(txn)

	return nil
}

func (s *Storage) CreditUserBalance(_ context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	usr.Balance = usr.Balance.Add(amount)
	s.appendTransaction(txn)

	return nil
}

// appendTransaction stores a copy of the ledger row. Callers hold s.mu.
func (s *Storage) appendTransaction(txn *transactions.Transaction) {
	stored := *txn
	stored.ID = s.nextTxnID
	s.nextTxnID++

	s.transactions = append(s.transactions, &stored)
}

func (s *Storage) GetService(_ context.Context, id int64) (*services.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, storage.ErrServiceNotFound
	}

	sv := *svc

	return &sv, nil
}

func (s *Storage) ListServices(_ context.Context) ([]*services.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*services.Service, 0, len(s.services))

	for _, svc := range s.services {
		sv := *svc
		list = append(list, &sv)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	return list, nil
}

func (s *Storage) SaveServices(_ context.Context, svcs []*services.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, svc := range svcs {
		var existing *services.Service

		for _, stored := range s.services {
			if stored.VendorServiceID == svc.VendorServiceID {
				existing = stored

				break
			}
		}

		if existing != nil {
			id := existing.ID
			*existing = *svc
			existing.ID = id

			continue
		}

		stored := *svc
		stored.ID = s.nextServiceID
		s.nextServiceID++

		s.services[stored.ID] = &stored
	}

	return nil
}

func (s *Storage) CreateOrder(_ context.Context, order *orders.Order, profit *transactions.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *order
	stored.ID = s.nextOrderID
	s.nextOrderID++

	s.orders[stored.ID] = &stored

	orderID := stored.ID
	profitRow := *profit
	profitRow.OrderID = &orderID
	s.appendTransaction(&profitRow)

	return stored.ID, nil
}

func (s *Storage) GetOrder(_ context.Context, id int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}

	o := *ord

	return &o, nil
}

func (s *Storage) GetOrdersByUser(_ context.Context, userID int64) ([]*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*orders.Order, 0)

	for _, ord := range s.orders {
		if ord.UserID == userID {
			o := *ord
			list = append(list, &o)
		}
	}

	sortOrders(list)

	return list, nil
}

func (s *Storage) ListOrders(_ context.Context, statuses ...string) ([]*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		wanted[status] = struct{}{}
	}

	list := make([]*orders.Order, 0)

	for _, ord := range s.orders {
		if len(wanted) > 0 {
			if _, ok := wanted[ord.Status]; !ok {
				continue
			}
		}

		o := *ord
		list = append(list, &o)
	}

	sortOrders(list)

	return list, nil
}

func sortOrders(list []*orders.Order) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func (s *Storage) UpdateOrderStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}

	ord.Status = status

	return nil
}

func (s *Storage) GetTransactionsByUser(_ context.Context, userID int64) ([]*transactions.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*transactions.Transaction, 0)

	for _, txn := range s.transactions {
		if txn.UserID == userID {
			t := *txn
			list = append(list, &t)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })

	return list, nil
}

func (s *Storage) ProfitReport(_ context.Context, now time.Time) (*transactions.ProfitReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &transactions.ProfitReport{
		Total: decimal.Zero,
		Today: decimal.Zero,
		Month: decimal.Zero,
	}

	year, month, day := now.Date()

	for _, txn := range s.transactions {
		if txn.Type != transactions.TypeProfit {
			continue
		}

		report.Total = report.Total.Add(txn.Amount)

		ty, tm, td := txn.CreatedAt.Date()
		if ty == year && tm == month {
			report.Month = report.Month.Add(txn.Amount)

			if td == day {
				report.Today = report.Today.Add(txn.Amount)
			}
		}
	}

	return report, nil
}

func (s *Storage) CreateIntent(_ context.Context, intent *intents.OrderIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *intent
	s.intents[stored.ID] = &stored

	return nil
}

func (s *Storage) ResolveIntent(_ context.Context, id string, state intents.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return storage.ErrIntentNotFound
	}

	intent.State = state

	return nil
}

func (s *Storage) CompensateIntent(_ context.Context, id string, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok || intent.State != intents.StatePending {
		return storage.ErrIntentNotFound
	}

	usr, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	// State flip and credit happen under one lock: either both land or
	// neither does.
	intent.State = intents.StateCompensated
	usr.Balance = usr.Balance.Add(amount)
	s.appendTransaction(txn)

	return nil
}

func (s *Storage) ListPendingIntents(_ context.Context, cutoff time.Time) ([]*intents.OrderIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*intents.OrderIntent, 0)

	for _, intent := range s.intents {
		if intent.State == intents.StatePending && intent.CreatedAt.Before(cutoff) {
			i := *intent
			list = append(list, &i)
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	return list, nil
}

func (s *Storage) GetMarkup(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markup, nil
}

func (s *Storage) SetMarkup(_ context.Context, markup decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markup = markup

	return nil
}

func (s *Storage) RecordPaymentDeposit(_ context.Context, paymentID string, userID int64, amount decimal.Decimal, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[paymentID]; ok {
		return storage.ErrPaymentAlreadyProcessed
	}

	usr, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	usr.Balance = usr.Balance.Add(amount)
	s.payments[paymentID] = struct{}{}
	s.appendTransaction(transactions.NewDeposit(userID, amount, description))

	return nil
}

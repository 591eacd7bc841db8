package pgstorage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	// Postgres driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/andymarkow/smmstore/internal/domain/intents"
	"github.com/andymarkow/smmstore/internal/domain/orders"
	"github.com/andymarkow/smmstore/internal/domain/services"
	"github.com/andymarkow/smmstore/internal/domain/transactions"
	"github.com/andymarkow/smmstore/internal/domain/users"
	"github.com/andymarkow/smmstore/internal/storage"
	"github.com/andymarkow/smmstore/internal/storage/dbmodels"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ storage.Storage = (*Storage)(nil)

type Storage struct {
	db *sql.DB
}

type Config struct {
	maxOpenConns    int
	maxIdleConns    int
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
}

type Option func(c *Config)

func WithMaxOpenConns(conns int) Option {
	return func(c *Config) {
		c.maxOpenConns = conns
	}
}

func WithMaxIdleConns(conns int) Option {
	return func(c *Config) {
		c.maxIdleConns = conns
	}
}

func WithConnMaxIdleTime(idleTime time.Duration) Option {
	return func(c *Config) {
		c.connMaxIdleTime = idleTime
	}
}

func WithConnMaxLifetime(lifetime time.Duration) Option {
	return func(c *Config) {
		c.connMaxLifetime = lifetime
	}
}

func NewStorage(connStr string, opts ...Option) (*Storage, error) {
	cfg := &Config{
		maxOpenConns:    10,
		maxIdleConns:    5,
		connMaxIdleTime: 180 * time.Second,
		connMaxLifetime: 3600 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	db.SetMaxOpenConns(cfg.maxOpenConns)
	db.SetMaxIdleConns(cfg.maxIdleConns)
	db.SetConnMaxIdleTime(cfg.connMaxIdleTime)
	db.SetConnMaxLifetime(cfg.connMaxLifetime)

	return &Storage{db: db}, nil
}

// Bootstrap applies pending schema migrations.
func (s *Storage) Bootstrap(ctx context.Context) error {
	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("fs.Sub: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, s.db, migrations)
	if err != nil {
		return fmt.Errorf("goose.NewProvider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("provider.Up: %w", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("db.Close: %w", err)
	}

	return nil
}

// isRetryableError checks if error is retryable.
func isRetryableError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return true
	}

	return false
}

// WithRetry retries operations in case of retryable errors.
func WithRetry(operation func() error) error {
	retryCount := 3
	retryWaitInterval := 2

	var err error

	for i := 0; i < retryCount; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return fmt.Errorf("%w", err)
		}

		time.Sleep(time.Duration(i*retryWaitInterval+1) * time.Second) // 1s, 3s, 5s
	}

	return fmt.Errorf("retry attempts exceeded: %w", err)
}

func (s *Storage) Ping(ctx context.Context) error {
	err := WithRetry(func() error {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db.PingContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreateUser(ctx context.Context, usr *users.User) (int64, error) {
	var id int64

	err := WithRetry(func() error {
		query := `INSERT INTO users (name, email, password_hash, is_admin, balance, created_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

		row := s.db.QueryRowContext(ctx, query,
			usr.Name, usr.Email, usr.PasswordHash, usr.IsAdmin, usr.Balance, usr.CreatedAt,
		)

		if err := row.Scan(&id); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrUserAlreadyExists
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

const userColumns = `id, name, email, password_hash, is_admin, balance, created_at`

func scanUser(row *sql.Row) (*users.User, error) {
	dbUser := new(dbmodels.User)

	if err := row.Scan(
		&dbUser.ID, &dbUser.Name, &dbUser.Email, &dbUser.PasswordHash,
		&dbUser.IsAdmin, &dbUser.Balance, &dbUser.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return &users.User{
		ID:           dbUser.ID,
		Name:         dbUser.Name,
		Email:        dbUser.Email,
		PasswordHash: dbUser.PasswordHash,
		IsAdmin:      dbUser.IsAdmin,
		Balance:      dbUser.Balance,
		CreatedAt:    dbUser.CreatedAt,
	}, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*users.User, error) {
	var usr *users.User

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

		u, err := scanUser(row)
		if err != nil {
			return err
		}

		usr = u

		return nil
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var usr *users.User

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, email)

		u, err := scanUser(row)
		if err != nil {
			return err
		}

		usr = u

		return nil
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*users.User, error) {
	list := make([]*users.User, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+userColumns+` FROM users ORDER BY name ASC`)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list = list[:0]

		for rows.Next() {
			dbUser := new(dbmodels.User)

			if err := rows.Scan(
				&dbUser.ID, &dbUser.Name, &dbUser.Email, &dbUser.PasswordHash,
				&dbUser.IsAdmin, &dbUser.Balance, &dbUser.CreatedAt,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			list = append(list, &users.User{
				ID:           dbUser.ID,
				Name:         dbUser.Name,
				Email:        dbUser.Email,
				PasswordHash: dbUser.PasswordHash,
				IsAdmin:      dbUser.IsAdmin,
				Balance:      dbUser.Balance,
				CreatedAt:    dbUser.CreatedAt,
			})
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

// insertTransaction appends a ledger row within the given transaction.
func insertTransaction(ctx context.Context, tx *sql.Tx, txn *transactions.Transaction) error {
	orderID := sql.NullInt64{}
	if txn.OrderID != nil {
		orderID = sql.NullInt64{Int64: *txn.OrderID, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, order_id, type, amount, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
		txn.UserID, orderID, string(txn.Type), txn.Amount, txn.Description, txn.CreatedAt,
	); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}

func (s *Storage) DebitUserBalance(ctx context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		// Conditional update serializes concurrent debits of the same
		// balance row and keeps it non-negative.
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1`,
			amount, userID,
		)
		if err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("tx.QueryRowContext: %w", err)
			}

			if !exists {
				return storage.ErrUserNotFound
			}

			return storage.ErrUserBalanceNotEnough
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreditUserBalance(ctx context.Context, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if err := creditBalance(ctx, tx, userID, amount); err != nil {
			return err
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func creditBalance(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("res.RowsAffected: %w", err)
	}

	if affected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

const serviceColumns = `id, vendor_service_id, name, type, category, rate, min_quantity, max_quantity, refill`

func (s *Storage) GetService(ctx context.Context, id int64) (*services.Service, error) {
	dbSvc := new(dbmodels.Service)

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)

		if err := row.Scan(
			&dbSvc.ID, &dbSvc.VendorServiceID, &dbSvc.Name, &dbSvc.Type,
			&dbSvc.Category, &dbSvc.Rate, &dbSvc.Min, &dbSvc.Max, &dbSvc.Refill,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrServiceNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return serviceFromDB(dbSvc), nil
}

func serviceFromDB(dbSvc *dbmodels.Service) *services.Service {
	return &services.Service{
		ID:              dbSvc.ID,
		VendorServiceID: dbSvc.VendorServiceID,
		Name:            dbSvc.Name,
		Type:            dbSvc.Type,
		Category:        dbSvc.Category,
		Rate:            dbSvc.Rate,
		Min:             dbSvc.Min,
		Max:             dbSvc.Max,
		Refill:          dbSvc.Refill,
	}
}

func (s *Storage) ListServices(ctx context.Context) ([]*services.Service, error) {
	list := make([]*services.Service, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+serviceColumns+` FROM services ORDER BY id ASC`)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list = list[:0]

		for rows.Next() {
			dbSvc := new(dbmodels.Service)

			if err := rows.Scan(
				&dbSvc.ID, &dbSvc.VendorServiceID, &dbSvc.Name, &dbSvc.Type,
				&dbSvc.Category, &dbSvc.Rate, &dbSvc.Min, &dbSvc.Max, &dbSvc.Refill,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			list = append(list, serviceFromDB(dbSvc))
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) SaveServices(ctx context.Context, svcs []*services.Service) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		query := `INSERT INTO services (vendor_service_id, name, type, category, rate, min_quantity, max_quantity, refill)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (vendor_service_id) DO UPDATE SET
				name = EXCLUDED.name, type = EXCLUDED.type, category = EXCLUDED.category,
				rate = EXCLUDED.rate, min_quantity = EXCLUDED.min_quantity,
				max_quantity = EXCLUDED.max_quantity, refill = EXCLUDED.refill`

		for _, svc := range svcs {
			if _, err := tx.ExecContext(ctx, query,
				svc.VendorServiceID, svc.Name, svc.Type, svc.Category,
				svc.Rate, svc.Min, svc.Max, svc.Refill,
			); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreateOrder(ctx context.Context, order *orders.Order, profit *transactions.Transaction) (int64, error) {
	var orderID int64

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		row := tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, service_id, vendor_order_id, quantity, user_price, real_price, profit, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			order.UserID, order.ServiceID, order.VendorOrderID, order.Quantity,
			order.UserPrice, order.RealPrice, order.Profit, order.Status, order.CreatedAt,
		)

		if err := row.Scan(&orderID); err != nil {
			return fmt.Errorf("row.Scan: %w", err)
		}

		// Profit is booked strictly after the order row exists.
		profitRow := *profit
		profitRow.OrderID = &orderID

		if err := insertTransaction(ctx, tx, &profitRow); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return orderID, nil
}

const orderColumns = `id, user_id, service_id, vendor_order_id, quantity, user_price, real_price, profit, status, created_at`

func scanOrderRows(rows *sql.Rows) ([]*orders.Order, error) {
	list := make([]*orders.Order, 0)

	for rows.Next() {
		dbOrder := new(dbmodels.Order)

		if err := rows.Scan(
			&dbOrder.ID, &dbOrder.UserID, &dbOrder.ServiceID, &dbOrder.VendorOrderID,
			&dbOrder.Quantity, &dbOrder.UserPrice, &dbOrder.RealPrice, &dbOrder.Profit,
			&dbOrder.Status, &dbOrder.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		list = append(list, orderFromDB(dbOrder))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return list, nil
}

func orderFromDB(dbOrder *dbmodels.Order) *orders.Order {
	return &orders.Order{
		ID:            dbOrder.ID,
		UserID:        dbOrder.UserID,
		ServiceID:     dbOrder.ServiceID,
		VendorOrderID: dbOrder.VendorOrderID,
		Quantity:      dbOrder.Quantity,
		UserPrice:     dbOrder.UserPrice,
		RealPrice:     dbOrder.RealPrice,
		Profit:        dbOrder.Profit,
		Status:        dbOrder.Status,
		CreatedAt:     dbOrder.CreatedAt,
	}
}

func (s *Storage) GetOrder(ctx context.Context, id int64) (*orders.Order, error) {
	dbOrder := new(dbmodels.Order)

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

		if err := row.Scan(
			&dbOrder.ID, &dbOrder.UserID, &dbOrder.ServiceID, &dbOrder.VendorOrderID,
			&dbOrder.Quantity, &dbOrder.UserPrice, &dbOrder.RealPrice, &dbOrder.Profit,
			&dbOrder.Status, &dbOrder.CreatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrOrderNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return orderFromDB(dbOrder), nil
}

func (s *Storage) GetOrdersByUser(ctx context.Context, userID int64) ([]*orders.Order, error) {
	var list []*orders.Order

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list, err = scanOrderRows(rows)

		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) ListOrders(ctx context.Context, statuses ...string) ([]*orders.Order, error) {
	var list []*orders.Order

	err := WithRetry(func() error {
		query := `SELECT ` + orderColumns + ` FROM orders`

		args := make([]any, 0, 1)
		if len(statuses) > 0 {
			query += ` WHERE status = ANY($1)`
			args = append(args, pq.Array(statuses))
		}

		query += ` ORDER BY created_at DESC`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list, err = scanOrderRows(rows)

		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) UpdateOrderStatus(ctx context.Context, id int64, status string) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE orders SET status = $1 WHERE id = $2`, status, id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrOrderNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) GetTransactionsByUser(ctx context.Context, userID int64) ([]*transactions.Transaction, error) {
	list := make([]*transactions.Transaction, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, user_id, order_id, type, amount, description, created_at
				FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list = list[:0]

		for rows.Next() {
			dbTxn := new(dbmodels.Transaction)

			if err := rows.Scan(
				&dbTxn.ID, &dbTxn.UserID, &dbTxn.OrderID, &dbTxn.Type,
				&dbTxn.Amount, &dbTxn.Description, &dbTxn.CreatedAt,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			txn := &transactions.Transaction{
				ID:          dbTxn.ID,
				UserID:      dbTxn.UserID,
				Type:        transactions.Type(dbTxn.Type),
				Amount:      dbTxn.Amount,
				Description: dbTxn.Description,
				CreatedAt:   dbTxn.CreatedAt,
			}

			if dbTxn.OrderID.Valid {
				orderID := dbTxn.OrderID.Int64
				txn.OrderID = &orderID
			}

			list = append(list, txn)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) ProfitReport(ctx context.Context, now time.Time) (*transactions.ProfitReport, error) {
	report := new(transactions.ProfitReport)

	err := WithRetry(func() error {
		query := `SELECT
				COALESCE(SUM(amount), 0),
				COALESCE(SUM(amount) FILTER (WHERE created_at::date = $1::date), 0),
				COALESCE(SUM(amount) FILTER (WHERE date_trunc('month', created_at) = date_trunc('month', $1::timestamptz)), 0)
			FROM transactions WHERE type = 'profit'`

		row := s.db.QueryRowContext(ctx, query, now)

		if err := row.Scan(&report.Total, &report.Today, &report.Month); err != nil {
			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

func (s *Storage) CreateIntent(ctx context.Context, intent *intents.OrderIntent) error {
	err := WithRetry(func() error {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO order_intents (id, user_id, service_id, quantity, link, user_price, state, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			intent.ID, intent.UserID, intent.ServiceID, intent.Quantity,
			intent.Link, intent.UserPrice, string(intent.State), intent.CreatedAt,
		); err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) ResolveIntent(ctx context.Context, id string, state intents.State) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE order_intents SET state = $1 WHERE id = $2`, string(state), id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrIntentNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CompensateIntent(ctx context.Context, id string, userID int64, amount decimal.Decimal, txn *transactions.Transaction) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		// The conditional transition guards the credit: a concurrent
		// compensation of the same intent finds zero rows and backs out.
		res, err := tx.ExecContext(ctx,
			`UPDATE order_intents SET state = $1 WHERE id = $2 AND state = $3`,
			string(intents.StateCompensated), id, string(intents.StatePending))
		if err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrIntentNotFound
		}

		if err := creditBalance(ctx, tx, userID, amount); err != nil {
			return err
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) ListPendingIntents(ctx context.Context, cutoff time.Time) ([]*intents.OrderIntent, error) {
	list := make([]*intents.OrderIntent, 0)

	err := WithRetry(func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, user_id, service_id, quantity, link, user_price, state, created_at
				FROM order_intents WHERE state = 'pending' AND created_at < $1
				ORDER BY created_at ASC`, cutoff)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		list = list[:0]

		for rows.Next() {
			dbIntent := new(dbmodels.OrderIntent)

			if err := rows.Scan(
				&dbIntent.ID, &dbIntent.UserID, &dbIntent.ServiceID, &dbIntent.Quantity,
				&dbIntent.Link, &dbIntent.UserPrice, &dbIntent.State, &dbIntent.CreatedAt,
			); err != nil {
				return fmt.Errorf("rows.Scan: %w", err)
			}

			list = append(list, &intents.OrderIntent{
				ID:        dbIntent.ID,
				UserID:    dbIntent.UserID,
				ServiceID: dbIntent.ServiceID,
				Quantity:  dbIntent.Quantity,
				Link:      dbIntent.Link,
				UserPrice: dbIntent.UserPrice,
				State:     intents.State(dbIntent.State),
				CreatedAt: dbIntent.CreatedAt,
			})
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) GetMarkup(ctx context.Context) (decimal.Decimal, error) {
	var markup decimal.Decimal

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT markup_amount FROM admin_settings WHERE id = 1`)

		if err := row.Scan(&markup); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return storage.ErrMarkupSettingNotFound
			}

			return fmt.Errorf("db.QueryRowContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return markup, nil
}

func (s *Storage) SetMarkup(ctx context.Context, markup decimal.Decimal) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE admin_settings SET markup_amount = $1 WHERE id = 1`, markup)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrMarkupSettingNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) RecordPaymentDeposit(ctx context.Context, paymentID string, userID int64, amount decimal.Decimal, description string) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		// The primary key on payment_id makes repeated notifications for
		// the same payment a no-op.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO processed_payments (payment_id) VALUES ($1)`, paymentID,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
				return storage.ErrPaymentAlreadyProcessed
			}

			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if err := creditBalance(ctx, tx, userID, amount); err != nil {
			return err
		}

		if err := insertTransaction(ctx, tx, transactions.NewDeposit(userID, amount, description)); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

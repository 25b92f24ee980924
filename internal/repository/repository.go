package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Credentials struct {
	Driver            string
	Path              string // sqlite file, ":memory:" for tests
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string // parent of the per-driver migration directories
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

type ShopRepository interface {
	CreateShop(ctx context.Context, s *domain.Shop) error
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	ListShops(ctx context.Context, filter domain.Location) ([]*domain.Shop, error)
	ListShopsByOwner(ctx context.Context, ownerID string) ([]*domain.Shop, error)
	SetShopOpen(ctx context.Context, id string, open bool) error
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*domain.Product, error)
	ListProductsByShop(ctx context.Context, shopID string) ([]*domain.Product, error)
	SearchProducts(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, error)
}

type CartRepository interface {
	AddCartItem(ctx context.Context, item *domain.CartItem) error
	GetCartItems(ctx context.Context, customerID string) ([]domain.CartItem, error)
	RemoveCartItem(ctx context.Context, customerID, itemID string) error
}

type OrderRepository interface {
	PlaceOrder(ctx context.Context, order *domain.Order, cart []domain.CartItem, event *domain.OutboxEvent) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	ListOrdersForDelivery(ctx context.Context, q DeliveryQuery) ([]*domain.Order, error)
	TransitionOrder(ctx context.Context, t Transition) error
	ClaimOrder(ctx context.Context, orderID, deliveryPersonID string, at time.Time) error
	ListStatusHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
}

type StatsRepository interface {
	CountShopsByOwner(ctx context.Context, ownerID string) (int, error)
	CountProductsByOwner(ctx context.Context, ownerID string) (int, error)
	CountOrdersByOwner(ctx context.Context, ownerID string) (int, error)
	CountOrdersByCustomer(ctx context.Context, customerID string) (int, error)
	CountCartItems(ctx context.Context, customerID string) (int, error)
	CountDeliveries(ctx context.Context, deliveryPersonID string, statuses []domain.OrderStatus) (int, error)
}

// Store is everything the services need from persistence.
type Store interface {
	UserRepository
	ShopRepository
	ProductRepository
	CartRepository
	OrderRepository
	OutboxRepository
	StatsRepository
	RunMigrations(path string) error
	Ping(ctx context.Context) error
	Close() error
}

type Repository struct {
	db     *sql.DB
	driver string
}

var _ Store = (*Repository)(nil)

func NewRepository(cred *Credentials) (*Repository, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cred.Driver {
	case DriverSQLite, "":
		db, err = sql.Open("sqlite", cred.Path)
	case DriverPostgres:
		psqlconn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cred.Host,
			cred.Port,
			cred.User,
			cred.Password,
			cred.DBName)
		db, err = sql.Open("postgres", psqlconn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cred.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver := DriverPostgres
	if cred.Driver != DriverPostgres {
		driver = DriverSQLite
		// one connection keeps ":memory:" databases shared and serializes writers
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	return &Repository{db: db, driver: driver}, nil
}

// RunMigrations applies the migrations under path/<driver>.
func (r *Repository) RunMigrations(path string) error {
	var (
		driver database.Driver
		err    error
	)
	if r.driver == DriverPostgres {
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "orderbuddy_schema_migrations",
		})
	} else {
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", filepath.Join(path, r.driver)),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// withTx runs fn in a transaction, rolling back on any error.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr *sqlitedriver.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("$%d", start+i)
	}
	return s
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/akorchagin/market-api/internal/domain/models"
	"github.com/akorchagin/market-api/internal/storage"
)

const userColumnsQuery = `SELECT id, email, pass_hash, first_name, last_name, role, created_at FROM users WHERE id = \$1`

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "email", "pass_hash", "first_name", "last_name", "role", "created_at"}).
		AddRow(userID, "test@example.com", []byte("hashed-password"), "Ivan", "Petrov", "user", now)

	mock.ExpectQuery(userColumnsQuery).WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(ctx, userID)
	assert.NoError(t, err, "Expected no error when user is found")
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, []byte("hashed-password"), user.PassHash)
	assert.Equal(t, models.RoleUser, user.Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "pass_hash", "first_name", "last_name", "role", "created_at"})
	mock.ExpectQuery(userColumnsQuery).WithArgs(int64(2)).WillReturnRows(rows)

	user, err := repo.GetUserByID(context.Background(), 2)
	assert.ErrorIs(t, err, storage.ErrUserNotFound, "Expected sentinel error when user is not found")
	assert.Nil(t, user, "User should be nil when not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	// Эмулируем нарушение уникальности email (код 23505).
	mock.ExpectQuery(regexp.QuoteMeta(
		`INSERT INTO users (email, pass_hash, first_name, last_name, role, created_at)`)).
		WithArgs("dup@example.com", []byte("hash"), "Ivan", "Petrov", "user").
		WillReturnError(&pq.Error{Code: "23505"})

	user, err := repo.CreateUser(context.Background(), &models.User{
		Email:     "dup@example.com",
		PassHash:  []byte("hash"),
		FirstName: "Ivan",
		LastName:  "Petrov",
		Role:      "user",
	})
	assert.ErrorIs(t, err, storage.ErrUserExists, "Unique violation should map to ErrUserExists")
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "price", "category", "stock", "image_url", "seller_id", "is_active", "created_at"}).
		AddRow(1, "Keyboard", "Mechanical", 49.90, "electronics", 10, "", 7, true, now)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, description, price, category, stock, image_url, seller_id, is_active, created_at FROM products WHERE id = $1")).
		WithArgs(int64(1)).WillReturnRows(rows)

	product, err := repo.GetProductByID(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, "Keyboard", product.Name)
	assert.Equal(t, 49.90, product.Price)
	assert.Equal(t, 10, product.Stock)
	assert.True(t, product.IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "price", "category", "stock", "image_url", "seller_id", "is_active", "created_at"})
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, description, price, category, stock, image_url, seller_id, is_active, created_at FROM products WHERE id = $1")).
		WithArgs(int64(99)).WillReturnRows(rows)

	product, err := repo.GetProductByID(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.Nil(t, product)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// при stock >= qty затрагивается ровно одна строка
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1")).
		WithArgs(3, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.DecrementStock(context.Background(), tx, 1, 3)
	assert.NoError(t, err, "Decrement should succeed when stock is sufficient")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStock_Insufficient(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// условие stock >= qty не проходит — ноль затронутых строк
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1")).
		WithArgs(100, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.DecrementStock(context.Background(), tx, 1, 100)
	assert.ErrorIs(t, err, storage.ErrInsufficientStock, "Zero affected rows should map to ErrInsufficientStock")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementStock_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE products SET stock = stock + $1 WHERE id = $2")).
		WithArgs(3, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.IncrementStock(context.Background(), tx, 1, 3)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3")).
		WithArgs("confirmed", int64(5), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateOrderStatus(context.Background(), 5, 1, "confirmed")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound, "Zero affected rows should map to ErrOrderNotFound")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatus_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3")).
		WithArgs("confirmed", int64(5), int64(1)).
		WillReturnError(errors.New("db error"))

	err = repo.UpdateOrderStatus(context.Background(), 5, 1, "confirmed")
	assert.Error(t, err, "Expected error when query fails")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveCartByUser_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewCartRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "total_amount", "total_items", "is_active", "expires_at", "created_at", "updated_at"})
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, user_id, total_amount, total_items, is_active, expires_at, created_at, updated_at")).
		WithArgs(int64(1)).WillReturnRows(rows)

	cart, err := repo.GetActiveCartByUser(context.Background(), 1)
	assert.ErrorIs(t, err, storage.ErrCartNotFound, "Missing or expired cart should map to ErrCartNotFound")
	assert.Nil(t, cart)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopViewedProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewAnalyticsRepository(db)
	from := time.Now().AddDate(0, 0, -30)

	rows := sqlmock.NewRows([]string{"product_id", "views"}).
		AddRow(int64(7), 42).
		AddRow(int64(3), 11)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT product_id, COUNT(*) AS views")).
		WithArgs(from, 10).WillReturnRows(rows)

	top, err := repo.TopViewedProducts(context.Background(), from, 10)
	assert.NoError(t, err)
	assert.Len(t, top, 2)
	assert.Equal(t, int64(7), top[0].ProductID)
	assert.Equal(t, 42, top[0].Views)
	assert.Equal(t, int64(3), top[1].ProductID)
	assert.Equal(t, 11, top[1].Views)

	assert.NoError(t, mock.ExpectationsWereMet())
}

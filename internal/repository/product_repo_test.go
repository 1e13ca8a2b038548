package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"jastip/internal/model"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}

	return gormDB, mock
}

func TestProductRepository_GetByID(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	rows := sqlmock.NewRows([]string{"id", "trip_id", "name", "price", "product_type", "stock", "markup_type", "markup_value", "weight_gram", "created_at", "updated_at"}).
		AddRow(1, 10, "Tokyo Banana", 150000, "goods", 12, "percent", 10, 500, time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM `products`").
		WillReturnRows(rows)

	product, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if product.Name != "Tokyo Banana" {
		t.Errorf("name = %q, want %q", product.Name, "Tokyo Banana")
	}
	if product.AvailableStock() != 12 {
		t.Errorf("stock = %d, want 12", product.AvailableStock())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM `products`").
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.GetByID(context.Background(), 404)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound", err)
	}
}

func TestProductRepository_DecrStock(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DecrStock(context.Background(), 1, 2); err != nil {
		t.Errorf("DecrStock failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProductRepository_DecrStock_Insufficient(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	// Guard clause matches no rows when stock < quantity.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DecrStock(context.Background(), 1, 99)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("err = %v, want ErrInsufficientStock", err)
	}
}

func TestProductRepository_Create(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	product := &model.Product{
		TripID:      10,
		Name:        "Airport pickup",
		Price:       200000,
		ProductType: model.ProductTypeTasks,
		MarkupType:  model.MarkupTypeFlat,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `products`").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), product); err != nil {
		t.Errorf("Create failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestProductRepository_WarmLookupFilter(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewProductRepository(db)

	mock.ExpectQuery("SELECT `id` FROM `products`").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	if err := repo.WarmLookupFilter(context.Background()); err != nil {
		t.Fatalf("WarmLookupFilter failed: %v", err)
	}

	// After warming, an unknown ID must be rejected without touching the DB.
	_, err := repo.GetByID(context.Background(), 99999)
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("err = %v, want ErrProductNotFound from filter", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/storefront-payments/internal/domain/models"
	"github.com/linemk/storefront-payments/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderColumns = []string{
	"id", "items", "subtotal_minor", "discount_minor", "amount_minor", "currency", "customer", "promo_code", "status",
	"gateway_payment_id", "payment_success_notified_at", "payment_fail_notified_at", "created_at", "updated_at",
}

func TestInsertOrder_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	now := time.Now()

	order := &models.Order{
		ID:            "o1",
		Items:         []models.OrderItem{{ID: "A", Name: "Свеча", UnitPrice: 150000, Quantity: 2}},
		SubtotalMinor: 300000,
		AmountMinor:   300000,
		Currency:      "RUB",
		Customer:      models.Customer{Name: "Иван", Phone: "+79990000000"},
		Status:        models.OrderCreated,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders (id, items, subtotal_minor")).
		WithArgs("o1", sqlmock.AnyArg(), int64(300000), int64(0), int64(300000), "RUB", sqlmock.AnyArg(), "", "created").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	created, err := repo.Insert(context.Background(), order)
	assert.NoError(t, err)
	assert.Equal(t, now, created.CreatedAt)
	assert.Equal(t, now, created.UpdatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOrder_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).WillReturnError(errors.New("db error"))

	created, err := repo.Insert(context.Background(), &models.Order{ID: "o1", Status: models.OrderCreated})
	assert.Error(t, err)
	assert.Nil(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(orderColumns).AddRow(
		"o1",
		[]byte(`[{"id":"A","name":"Свеча","unit_price":150000,"quantity":2,"variant_label":"Лаванда"}]`),
		int64(300000), int64(0), int64(300000), "RUB",
		[]byte(`{"name":"Иван","phone":"+79990000000","delivery":{"city":"Москва"}}`),
		"", "created", "3093639567", now, nil, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).WithArgs("o1").WillReturnRows(rows)

	order, err := repo.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, models.OrderCreated, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(150000), order.Items[0].UnitPrice)
	assert.Equal(t, "Лаванда", order.Items[0].VariantLabel)
	assert.Equal(t, "Иван", order.Customer.Name)
	assert.Equal(t, "Москва", order.Customer.Delivery.City)
	assert.Equal(t, "3093639567", order.PaymentID())
	require.NotNil(t, order.PaymentSuccessNotifiedAt)
	assert.Nil(t, order.PaymentFailNotifiedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	order, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, storage.ErrOrderNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_Changed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3")).
		WithArgs("paid", "o1", "created").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), "o1", models.OrderPaid)
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_AlreadyTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $1")).
		WithArgs("failed", "o1", "created").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "o1", models.OrderFailed)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_IllegalTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	ok, err := repo.UpdateStatus(context.Background(), "o1", models.OrderCreated)
	assert.Error(t, err)
	assert.False(t, ok)

	// запрос в БД не уходит
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetGatewayPaymentID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	query := regexp.QuoteMeta("UPDATE orders SET gateway_payment_id = $1, updated_at = NOW() WHERE id = $2 AND gateway_payment_id IS NULL")
	mock.ExpectExec(query).WithArgs("42", "o1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("43", "o1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetGatewayPaymentID(context.Background(), "o1", "42")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetGatewayPaymentID(context.Background(), "o1", "43")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNotificationFlagIfNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET payment_success_notified_at = NOW(), updated_at = NOW() WHERE id = $1 AND payment_success_notified_at IS NULL AND payment_fail_notified_at IS NULL")).
		WithArgs("o1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET payment_fail_notified_at = NOW()")).
		WithArgs("o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetNotificationFlagIfNull(context.Background(), "o1", models.EventPaymentSuccess)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetNotificationFlagIfNull(context.Background(), "o1", models.EventPaymentFail)
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetNotificationFlagIfNull_UnknownEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ok, err := repo.SetNotificationFlagIfNull(context.Background(), "o1", models.NotificationEvent("REFUND"))
	assert.Error(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	now := time.Now()
	before := now.Add(-5 * time.Minute)
	after := now.Add(-24 * time.Hour)

	rows := sqlmock.NewRows(orderColumns).
		AddRow("o1", []byte(`[]`), int64(1000), int64(0), int64(1000), "RUB", []byte(`{}`), "", "created", "42", nil, nil, after, after).
		AddRow("o2", []byte(`[]`), int64(2000), int64(0), int64(2000), "RUB", []byte(`{}`), "", "created", "43", nil, nil, after, after)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND gateway_payment_id IS NOT NULL AND updated_at < $2 AND created_at > $3")).
		WithArgs("created", before, after, 50).
		WillReturnRows(rows)

	orders, err := repo.ListStale(context.Background(), before, after, 50)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "42", orders[0].PaymentID())
	assert.Equal(t, "o2", orders[1].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPolled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	query := regexp.QuoteMeta("UPDATE orders SET updated_at = NOW() WHERE id = $1 AND status = $2")
	mock.ExpectExec(query).WithArgs("o1", "created").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("o2", "created").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkPolled(context.Background(), "o1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPolled(context.Background(), "o2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveProducts_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	ids := []string{"A", "B", "missing"}

	rows := sqlmock.NewRows([]string{"id", "name", "price", "slug"}).
		AddRow("A", "Свеча", int64(150000), "svecha").
		AddRow("B", "Подсвечник", int64(99000), "podsvechnik")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, slug FROM products WHERE active AND id = ANY($1)")).
		WithArgs(pq.Array(ids)).
		WillReturnRows(rows)

	items, err := repo.Resolve(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(150000), items["A"].PriceMinor)
	assert.Equal(t, "podsvechnik", items["B"].Slug)
	_, ok := items["missing"]
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveProducts_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	items, err := repo.Resolve(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, items)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveProducts_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products")).WillReturnError(errors.New("query error"))

	items, err := repo.Resolve(context.Background(), []string{"A"})
	assert.Error(t, err)
	assert.Nil(t, items)

	assert.NoError(t, mock.ExpectationsWereMet())
}

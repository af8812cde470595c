package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linemk/storefront-payments/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
// Все изменения статуса и флагов уведомлений - одиночные условные UPDATE.
type OrderStorage interface {
	// Insert сохраняет новый заказ
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetByID возвращает заказ или ErrOrderNotFound
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// UpdateStatus переводит заказ из created в терминальный статус; false - если заказ уже не в created
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error)
	// SetGatewayPaymentID сохраняет идентификатор платежа, только если он ещё не задан
	SetGatewayPaymentID(ctx context.Context, id string, paymentID string) (bool, error)
	// SetNotificationFlagIfNull атомарно ставит отметку об уведомлении; true получает ровно один вызывающий
	SetNotificationFlagIfNull(ctx context.Context, id string, event models.NotificationEvent) (bool, error)
	// ListStale возвращает заказы в created с платежом, которые давно не обновлялись
	ListStale(ctx context.Context, updatedBefore, createdAfter time.Time, limit int) ([]*models.Order, error)
	// MarkPolled сдвигает updated_at заказа в created, чтобы следующая выборка ListStale дошла до других заказов
	MarkPolled(ctx context.Context, id string) (bool, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, items, subtotal_minor, discount_minor, amount_minor, currency, customer, promo_code, status,
		gateway_payment_id, payment_success_notified_at, payment_fail_notified_at, created_at, updated_at`

func (r *orderRepository) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	query := `INSERT INTO orders (id, items, subtotal_minor, discount_minor, amount_minor, currency, customer, promo_code, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	          RETURNING created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query,
		order.ID, string(items), order.SubtotalMinor, order.DiscountMinor, order.AmountMinor,
		order.Currency, string(customer), order.PromoCode, string(order.Status),
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	if !models.OrderCreated.CanTransitionTo(status) {
		return false, fmt.Errorf("illegal order status transition to %q", status)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		string(status), id, string(models.OrderCreated))
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	return changed(res)
}

func (r *orderRepository) SetGatewayPaymentID(ctx context.Context, id string, paymentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET gateway_payment_id = $1, updated_at = NOW() WHERE id = $2 AND gateway_payment_id IS NULL",
		paymentID, id)
	if err != nil {
		return false, fmt.Errorf("failed to set gateway payment id: %w", err)
	}
	return changed(res)
}

func (r *orderRepository) SetNotificationFlagIfNull(ctx context.Context, id string, event models.NotificationEvent) (bool, error) {
	column, err := notificationColumn(event)
	if err != nil {
		return false, err
	}
	// обе отметки проверяются вместе: за жизнь заказа ставится только одна из них
	query := fmt.Sprintf(`UPDATE orders SET %s = NOW(), updated_at = NOW()
		WHERE id = $1 AND payment_success_notified_at IS NULL AND payment_fail_notified_at IS NULL`, column)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to set notification flag: %w", err)
	}
	return changed(res)
}

func (r *orderRepository) ListStale(ctx context.Context, updatedBefore, createdAfter time.Time, limit int) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + ` FROM orders
		WHERE status = $1 AND gateway_payment_id IS NOT NULL AND updated_at < $2 AND created_at > $3
		ORDER BY updated_at
		LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, string(models.OrderCreated), updatedBefore, createdAfter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) MarkPolled(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE orders SET updated_at = NOW() WHERE id = $1 AND status = $2",
		id, string(models.OrderCreated))
	if err != nil {
		return false, fmt.Errorf("failed to mark order polled: %w", err)
	}
	return changed(res)
}

func notificationColumn(event models.NotificationEvent) (string, error) {
	switch event {
	case models.EventPaymentSuccess:
		return "payment_success_notified_at", nil
	case models.EventPaymentFail:
		return "payment_fail_notified_at", nil
	default:
		return "", fmt.Errorf("unknown notification event %q", event)
	}
}

func changed(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*models.Order, error) {
	var (
		order     models.Order
		items     []byte
		customer  []byte
		status    string
		paymentID sql.NullString
		successAt sql.NullTime
		failAt    sql.NullTime
	)
	err := row.Scan(&order.ID, &items, &order.SubtotalMinor, &order.DiscountMinor, &order.AmountMinor,
		&order.Currency, &customer, &order.PromoCode, &status,
		&paymentID, &successAt, &failAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &order.Customer); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customer: %w", err)
		}
	}
	order.Status = models.OrderStatus(status)
	if paymentID.Valid {
		order.GatewayPaymentID = &paymentID.String
	}
	if successAt.Valid {
		order.PaymentSuccessNotifiedAt = &successAt.Time
	}
	if failAt.Valid {
		order.PaymentFailNotifiedAt = &failAt.Time
	}
	return &order, nil
}

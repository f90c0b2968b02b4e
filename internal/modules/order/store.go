// README: Order store backed by PostgreSQL; status/payment writes are version-checked.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderIDConstraint = "orders_order_id_key"

// ListFilter narrows order listings. Zero values mean "no filter".
type ListFilter struct {
	UserID      string
	Statuses    []Status
	Fulfillment Fulfillment
	// ServiceCategory with ServicePartnerID selects service orders that are open
	// in the category or already assigned to that partner.
	ServiceCategory  string
	ServicePartnerID string
	Limit            int
}

// PartnerStats counts a service partner's queue. Pending is open work in the
// partner's category; the rest are orders the partner has taken.
type PartnerStats struct {
	Pending       int `json:"pending"`
	Accepted      int `json:"accepted"`
	Rejected      int `json:"rejected"`
	TotalAssigned int `json:"totalAssigned"`
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	FindByRef(ctx context.Context, ref string) (*Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]*Order, error)
	SaveStatus(ctx context.Context, o *Order, expectedVersion int, entry HistoryEntry) error
	SavePayment(ctx context.Context, o *Order, expectedVersion int) error
	CountByUser(ctx context.Context, userID string) (int, error)
	PartnerStats(ctx context.Context, category, partnerID string) (PartnerStats, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, order_id, user_id, category, fulfillment, items, pricing, address,
	payment_method, payment_status, transaction_id, gateway_order_id, delivery,
	coupon_code, status, service_partner_id, version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	pricingJSON, err := json.Marshal(o.Pricing)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.Address)
	if err != nil {
		return err
	}
	delivery, err := json.Marshal(o.Delivery)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_id, user_id, category, fulfillment, items, pricing, address,
			payment_method, payment_status, transaction_id, gateway_order_id, delivery,
			coupon_code, status, service_partner_id, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19
		)`,
		o.ID, o.OrderID, o.UserID, nullIfEmpty(o.Category), string(o.Fulfillment), items, pricingJSON, address,
		string(o.Payment.Method), string(o.Payment.Status), nullIfEmpty(o.Payment.TransactionID),
		nullIfEmpty(o.Payment.GatewayOrderID), delivery,
		nullIfEmpty(o.CouponCode), string(o.Status), nullIfEmpty(o.ServicePartnerID), o.Version,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == orderIDConstraint {
			return ErrDuplicateOrderID
		}
		return err
	}
	for _, e := range o.History {
		if err := appendHistory(ctx, tx, o.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// FindByRef looks up by internal id when ref parses as one, then by public order id.
func (s *Store) FindByRef(ctx context.Context, ref string) (*Order, error) {
	if _, err := uuid.Parse(ref); err == nil {
		o, err := s.findOne(ctx, `WHERE id = $1`, ref)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return o, err
		}
	}
	return s.findOne(ctx, `WHERE order_id = $1`, ref)
}

func (s *Store) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	return s.findOne(ctx, `WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text = '' OR user_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		  AND ($3::text = '' OR fulfillment = $3)
		  AND (($4::text = '' AND $5::text = '') OR (
		        ($4 <> '' AND service_partner_id IS NULL AND status = 'Pending'
		         AND (lower(category) = lower($4)
		              OR EXISTS (SELECT 1 FROM jsonb_array_elements(items) it
		                         WHERE lower(it->>'category') = lower($4))))
		        OR service_partner_id = $5::text))
		ORDER BY created_at DESC
		LIMIT $6`,
		f.UserID, statuses, string(f.Fulfillment), f.ServiceCategory, f.ServicePartnerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveStatus persists status, payment status and assignee, and appends entry, in one
// transaction. A concurrent writer that bumped the version first yields ErrConflict.
func (s *Store) SaveStatus(ctx context.Context, o *Order, expectedVersion int, entry HistoryEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    service_partner_id = COALESCE($3, service_partner_id),
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5 AND version = $6`,
		string(o.Status), string(o.Payment.Status), nullIfEmpty(o.ServicePartnerID), o.UpdatedAt,
		o.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	if err := appendHistory(ctx, tx, o.ID, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	o.Version = expectedVersion + 1
	return nil
}

func (s *Store) SavePayment(ctx context.Context, o *Order, expectedVersion int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_method = $1,
		    payment_status = $2,
		    transaction_id = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5 AND version = $6`,
		string(o.Payment.Method), string(o.Payment.Status), nullIfEmpty(o.Payment.TransactionID),
		o.UpdatedAt, o.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrConflict
	}
	o.Version = expectedVersion + 1
	return nil
}

func (s *Store) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (s *Store) PartnerStats(ctx context.Context, category, partnerID string) (PartnerStats, error) {
	var st PartnerStats
	err := s.db.QueryRow(ctx, `
		SELECT
		  count(*) FILTER (WHERE service_partner_id IS NULL AND status = 'Pending'
		                   AND (lower(category) = lower($1)
		                        OR EXISTS (SELECT 1 FROM jsonb_array_elements(items) it
		                                   WHERE lower(it->>'category') = lower($1)))),
		  count(*) FILTER (WHERE service_partner_id = $2 AND status NOT IN ('Pending', 'Cancelled')),
		  count(*) FILTER (WHERE service_partner_id = $2 AND status = 'Cancelled'),
		  count(*) FILTER (WHERE service_partner_id = $2)
		FROM orders
		WHERE fulfillment = 'service'`,
		category, partnerID,
	).Scan(&st.Pending, &st.Accepted, &st.Rejected, &st.TotalAssigned)
	return st, err
}

func appendHistory(ctx context.Context, tx pgx.Tx, orderID string, e HistoryEntry) error {
	var userID, partnerID *string
	switch a := e.By.(type) {
	case UserRef:
		v := string(a)
		userID = &v
	case PartnerRef:
		v := string(a)
		partnerID = &v
	default:
		return fmt.Errorf("%w: history entry without actor", ErrBadRequest)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, user_id, partner_id, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, string(e.Status), userID, partnerID, e.Role, e.At,
	)
	return err
}

func (s *Store) loadHistory(ctx context.Context, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}
	rows, err := s.db.Query(ctx, `
		SELECT order_id, status, user_id, partner_id, role, created_at
		FROM order_status_history
		WHERE order_id = ANY($1::text[])
		ORDER BY seq`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID, status, role string
			userID, partnerID     *string
			e                     HistoryEntry
		)
		if err := rows.Scan(&orderID, &status, &userID, &partnerID, &role, &e.At); err != nil {
			return err
		}
		e.Status, e.Role = Status(status), role
		if userID != nil {
			e.By = UserRef(*userID)
		} else if partnerID != nil {
			e.By = PartnerRef(*partnerID)
		}
		if o := byID[orderID]; o != nil {
			o.History = append(o.History, e)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                        Order
		category, txnID, gatewayID, coupon, spID *string
		items, pricingJSON, address, delivery    []byte
		method, payStatus, status, fulfillment   string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &category, &fulfillment, &items, &pricingJSON, &address,
		&method, &payStatus, &txnID, &gatewayID, &delivery,
		&coupon, &status, &spID, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Category = deref(category)
	o.Fulfillment = Fulfillment(fulfillment)
	o.Payment = Payment{
		Method:         PaymentMethod(method),
		Status:         PaymentStatus(payStatus),
		TransactionID:  deref(txnID),
		GatewayOrderID: deref(gatewayID),
	}
	o.CouponCode = deref(coupon)
	o.Status = Status(status)
	o.ServicePartnerID = deref(spID)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(pricingJSON, &o.Pricing); err != nil {
		return nil, fmt.Errorf("decode pricing: %w", err)
	}
	if err := json.Unmarshal(address, &o.Address); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if err := json.Unmarshal(delivery, &o.Delivery); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}
	return &o, nil
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/model"
)

// ErrNotFound is returned when a user or subscription does not exist.
var ErrNotFound = errors.New("not found")

// Repository is the storage the subscription pipeline depends on.
type Repository interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	FindSubscriptionByID(ctx context.Context, id int64) (*model.SubscriptionRecord, error)
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.SubscriptionRecord, error)
	CreateSubscription(ctx context.Context, ns model.NewSubscription) (*model.SubscriptionRecord, error)
	UpdateSubscription(ctx context.Context, id int64, p model.SubscriptionPatch) (*model.SubscriptionRecord, error)
	UpsertUser(ctx context.Context, u model.User) error
	UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error
	Ping(ctx context.Context) error
}

type PostgresRepo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewPostgresRepository(db *sqlx.DB, log *logrus.Logger) *PostgresRepo {
	return &PostgresRepo{db: db, log: log}
}

const subscriptionColumns = `id, name, cost, cycle, renewal_date, created_at, updated_at,
	user_id, is_active, category, notes, reminder`

func (p *PostgresRepo) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	q := `SELECT id, email, username, created_at, email_notifications, timezone FROM users WHERE id=$1`
	if err := p.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (p *PostgresRepo) FindSubscriptionByID(ctx context.Context, id int64) (*model.SubscriptionRecord, error) {
	var rec model.SubscriptionRecord
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if err := p.db.GetContext(ctx, &rec, q, id); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (p *PostgresRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id=$1
	ORDER BY renewal_date ASC NULLS LAST, id ASC`
	rows := []model.SubscriptionRecord{}
	if err := p.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *PostgresRepo) CreateSubscription(ctx context.Context, ns model.NewSubscription) (*model.SubscriptionRecord, error) {
	q := `INSERT INTO subscriptions (name, cost, cycle, renewal_date, user_id, is_active, category, notes, reminder)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING ` + subscriptionColumns
	var rec model.SubscriptionRecord
	err := p.db.GetContext(ctx, &rec, q,
		ns.Name, ns.Cost, ns.Cycle, ns.RenewalDate, ns.UserID, ns.IsActive, ns.Category, ns.Notes, ns.Reminder)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresRepo) UpdateSubscription(ctx context.Context, id int64, patch model.SubscriptionPatch) (*model.SubscriptionRecord, error) {
	q, args, err := buildUpdate(id, patch)
	if err != nil {
		return nil, err
	}
	var rec model.SubscriptionRecord
	if err := p.db.GetContext(ctx, &rec, q, args...); err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (p *PostgresRepo) UpsertUser(ctx context.Context, u model.User) error {
	q := `INSERT INTO users (id, email, username, timezone, email_notifications, created_at)
	VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()))
	ON CONFLICT (id) DO UPDATE SET
		email=EXCLUDED.email,
		username=EXCLUDED.username,
		timezone=EXCLUDED.timezone,
		email_notifications=EXCLUDED.email_notifications`
	_, err := p.db.ExecContext(ctx, q, u.ID, u.Email, u.Username, u.Timezone, u.EmailNotifications, nullTime(u.CreatedAt))
	return err
}

// UpsertSubscription writes rec with its own id and moves the id sequence past it.
func (p *PostgresRepo) UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := `INSERT INTO subscriptions (id, name, cost, cycle, renewal_date, created_at, updated_at,
		user_id, is_active, category, notes, reminder)
	VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()),COALESCE($7, NOW()),$8,$9,$10,$11,$12)
	ON CONFLICT (id) DO UPDATE SET
		name=EXCLUDED.name,
		cost=EXCLUDED.cost,
		cycle=EXCLUDED.cycle,
		renewal_date=EXCLUDED.renewal_date,
		updated_at=EXCLUDED.updated_at,
		is_active=EXCLUDED.is_active,
		category=EXCLUDED.category,
		notes=EXCLUDED.notes,
		reminder=EXCLUDED.reminder`
	if _, err := tx.ExecContext(ctx, q, rec.ID, rec.Name, rec.Cost, rec.Cycle, rec.RenewalDate,
		rec.CreatedAt, rec.UpdatedAt, rec.UserID, rec.IsActive, rec.Category, rec.Notes, rec.Reminder); err != nil {
		return err
	}
	seq := `SELECT setval(pg_get_serial_sequence('subscriptions', 'id'),
		GREATEST((SELECT MAX(id) FROM subscriptions), 1))`
	if _, err := tx.ExecContext(ctx, seq); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.log.WithField("subscription_id", rec.ID).Debug("upserted subscription")
	return nil
}

func (p *PostgresRepo) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// buildUpdate renders an UPDATE touching only the fields set in patch.
func buildUpdate(id int64, patch model.SubscriptionPatch) (string, []interface{}, error) {
	if patch.Empty() {
		return "", nil, errors.New("empty subscription patch")
	}
	var sets []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, col+"=$"+itoa(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Cost != nil {
		add("cost", *patch.Cost)
	}
	if patch.Cycle != nil {
		add("cycle", *patch.Cycle)
	}
	if patch.RenewalDate != nil {
		add("renewal_date", *patch.RenewalDate)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}
	if patch.Reminder != nil {
		add("reminder", *patch.Reminder)
	}
	sets = append(sets, "updated_at=NOW()")
	args = append(args, id)
	q := `UPDATE subscriptions SET ` + strings.Join(sets, ", ") +
		` WHERE id=$` + itoa(len(args)) + ` RETURNING ` + subscriptionColumns
	return q, args, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// helpers
func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

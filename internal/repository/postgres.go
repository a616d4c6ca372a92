package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/adbazaar/internal/domain"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	db   DBTX
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) Users() UserStore         { return pgUsers{s.db} }
func (s *PostgresStore) Ads() AdStore             { return pgAds{s.db} }
func (s *PostgresStore) Campaigns() CampaignStore { return pgCampaigns{s.db} }
func (s *PostgresStore) Payments() PaymentStore   { return pgPayments{s.db} }
func (s *PostgresStore) Referrals() ReferralStore { return pgReferrals{s.db} }

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.db.(pgx.Tx); inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{pool: s.pool, db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// mapErr converts driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type pgUsers struct{ db DBTX }

const userColumns = `id, email, password_hash, name, role, referral_code, referred_by_id, credit_balance, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.ReferralCode,
		&u.ReferredByID, &u.CreditBalance, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (q pgUsers) Create(ctx context.Context, u *domain.User) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, referral_code, referred_by_id, credit_balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), u.ReferralCode, u.ReferredByID, u.CreditBalance)
	return mapErr(row.Scan(&u.CreatedAt, &u.UpdatedAt))
}

func (q pgUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (q pgUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (q pgUsers) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

func (q pgUsers) SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error {
	return expectOne(q.db.Exec(ctx,
		`UPDATE users SET referred_by_id = $2, updated_at = now() WHERE id = $1`, id, referrerID))
}

func (q pgUsers) AddCredit(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.db.QueryRow(ctx,
		`UPDATE users SET credit_balance = credit_balance + $2, updated_at = now() WHERE id = $1 RETURNING credit_balance`,
		id, delta).Scan(&balance)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return balance, nil
}

// ---------------------------------------------------------------------------
// Ads
// ---------------------------------------------------------------------------

type pgAds struct{ db DBTX }

const adColumns = `id, owner_id, title, description, image_url, target_url, format, ai_generated, status, created_at, updated_at`

func scanAd(row pgx.Row) (*domain.Ad, error) {
	var a domain.Ad
	err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &a.Description, &a.ImageURL, &a.TargetURL,
		&a.Format, &a.AIGenerated, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (q pgAds) Create(ctx context.Context, a *domain.Ad) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO ads (id, owner_id, title, description, image_url, target_url, format, ai_generated, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.OwnerID, a.Title, a.Description, a.ImageURL, a.TargetURL, string(a.Format), a.AIGenerated, string(a.Status))
	return mapErr(row.Scan(&a.CreatedAt, &a.UpdatedAt))
}

func (q pgAds) Get(ctx context.Context, id uuid.UUID) (*domain.Ad, error) {
	return scanAd(q.db.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id))
}

func (q pgAds) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ad, error) {
	rows, err := q.db.Query(ctx, `SELECT `+adColumns+` FROM ads WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Ad, 0)
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (q pgAds) Update(ctx context.Context, a *domain.Ad) error {
	err := q.db.QueryRow(ctx, `
		UPDATE ads SET title = $2, description = $3, image_url = $4, target_url = $5, format = $6,
			ai_generated = $7, status = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Title, a.Description, a.ImageURL, a.TargetURL, string(a.Format), a.AIGenerated, string(a.Status)).
		Scan(&a.UpdatedAt)
	return mapErr(err)
}

func (q pgAds) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(q.db.Exec(ctx, `DELETE FROM ads WHERE id = $1`, id))
}

// ---------------------------------------------------------------------------
// Campaigns
// ---------------------------------------------------------------------------

type pgCampaigns struct{ db DBTX }

const campaignColumns = `id, owner_id, ad_id, name, slot_type, country, start_at, duration_days, format,
	ai_generated, price, currency, status, created_at, updated_at`

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(&c.ID, &c.OwnerID, &c.AdID, &c.Name, &c.SlotType, &c.Country, &c.StartAt,
		&c.DurationDays, &c.Format, &c.AIGenerated, &c.Price, &c.Currency, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (q pgCampaigns) Create(ctx context.Context, c *domain.Campaign) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO campaigns (id, owner_id, ad_id, name, slot_type, country, start_at, duration_days,
			format, ai_generated, price, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		c.ID, c.OwnerID, c.AdID, c.Name, string(c.SlotType), c.Country, c.StartAt, c.DurationDays,
		string(c.Format), c.AIGenerated, c.Price, c.Currency, string(c.Status))
	return mapErr(row.Scan(&c.CreatedAt, &c.UpdatedAt))
}

func (q pgCampaigns) Get(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	return scanCampaign(q.db.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
}

func (q pgCampaigns) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Campaign, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q pgCampaigns) Update(ctx context.Context, c *domain.Campaign) error {
	err := q.db.QueryRow(ctx, `
		UPDATE campaigns SET ad_id = $2, name = $3, slot_type = $4, country = $5, start_at = $6,
			duration_days = $7, format = $8, ai_generated = $9, price = $10, currency = $11,
			status = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.AdID, c.Name, string(c.SlotType), c.Country, c.StartAt, c.DurationDays, string(c.Format),
		c.AIGenerated, c.Price, c.Currency, string(c.Status)).
		Scan(&c.UpdatedAt)
	return mapErr(err)
}

func (q pgCampaigns) SetStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	return expectOne(q.db.Exec(ctx,
		`UPDATE campaigns SET status = $2, updated_at = now() WHERE id = $1`, id, string(status)))
}

func (q pgCampaigns) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE campaigns SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q pgCampaigns) Delete(ctx context.Context, id uuid.UUID) error {
	return expectOne(q.db.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id))
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

type pgPayments struct{ db DBTX }

const paymentColumns = `id, user_id, campaign_id, amount, currency, session_id, payment_intent_id, status,
	refunded_amount, reward_id, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.UserID, &p.CampaignID, &p.Amount, &p.Currency, &p.SessionID,
		&p.PaymentIntentID, &p.Status, &p.RefundedAmount, &p.RewardID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (q pgPayments) Create(ctx context.Context, p *domain.Payment) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (id, user_id, campaign_id, amount, currency, session_id, payment_intent_id,
			status, refunded_amount, reward_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.CampaignID, p.Amount, p.Currency, p.SessionID, p.PaymentIntentID,
		string(p.Status), p.RefundedAmount, p.RewardID)
	return mapErr(row.Scan(&p.CreatedAt, &p.UpdatedAt))
}

func (q pgPayments) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

func (q pgPayments) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return scanPayment(q.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE session_id = $1`, sessionID))
}

func (q pgPayments) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	if intentID == "" {
		return nil, ErrNotFound
	}
	return scanPayment(q.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_intent_id = $1`, intentID))
}

func (q pgPayments) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (q pgPayments) Update(ctx context.Context, p *domain.Payment) error {
	err := q.db.QueryRow(ctx, `
		UPDATE payments SET amount = $2, session_id = $3, payment_intent_id = $4, status = $5,
			refunded_amount = $6, reward_id = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Amount, p.SessionID, p.PaymentIntentID, string(p.Status), p.RefundedAmount, p.RewardID).
		Scan(&p.UpdatedAt)
	return mapErr(err)
}

func (q pgPayments) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE payments SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ---------------------------------------------------------------------------
// Referrals
// ---------------------------------------------------------------------------

type pgReferrals struct{ db DBTX }

const codeColumns = `code, owner_id, reward_type, reward_value, max_uses, uses, expires_at, active, created_at`

func scanCode(row pgx.Row) (*domain.ReferralCode, error) {
	var c domain.ReferralCode
	err := row.Scan(&c.Code, &c.OwnerID, &c.RewardType, &c.RewardValue, &c.MaxUses, &c.Uses,
		&c.ExpiresAt, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (q pgReferrals) CreateCode(ctx context.Context, c *domain.ReferralCode) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO referral_codes (code, owner_id, reward_type, reward_value, max_uses, uses, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		c.Code, c.OwnerID, string(c.RewardType), c.RewardValue, c.MaxUses, c.Uses, c.ExpiresAt, c.Active)
	return mapErr(row.Scan(&c.CreatedAt))
}

func (q pgReferrals) GetCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	return scanCode(q.db.QueryRow(ctx, `SELECT `+codeColumns+` FROM referral_codes WHERE code = $1`, code))
}

func (q pgReferrals) ListCodesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.ReferralCode, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+codeColumns+` FROM referral_codes WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list referral codes: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReferralCode, 0)
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (q pgReferrals) ClaimCodeUse(ctx context.Context, code string, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE referral_codes SET uses = uses + 1
		WHERE code = $1 AND active
		  AND (max_uses = 0 OR uses < max_uses)
		  AND (expires_at IS NULL OR expires_at > $2)`,
		code, at)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

const referralColumns = `id, code, referrer_id, referred_id, status, converted_at, created_at`

func scanReferral(row pgx.Row) (*domain.Referral, error) {
	var r domain.Referral
	err := row.Scan(&r.ID, &r.Code, &r.ReferrerID, &r.ReferredID, &r.Status, &r.ConvertedAt, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (q pgReferrals) CreateReferral(ctx context.Context, r *domain.Referral) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO referrals (id, code, referrer_id, referred_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		r.ID, r.Code, r.ReferrerID, r.ReferredID, string(r.Status))
	return mapErr(row.Scan(&r.CreatedAt))
}

func (q pgReferrals) GetReferralByReferred(ctx context.Context, referredID uuid.UUID) (*domain.Referral, error) {
	return scanReferral(q.db.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referred_id = $1`, referredID))
}

func (q pgReferrals) ListReferralsByReferrer(ctx context.Context, referrerID uuid.UUID) ([]domain.Referral, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Referral, 0)
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q pgReferrals) ConvertReferral(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE referrals SET status = 'converted', converted_at = $2 WHERE id = $1 AND status = 'pending'`, id, at)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

const rewardColumns = `id, referral_id, user_id, type, value, status, redeemed_at, created_at`

func scanReward(row pgx.Row) (*domain.ReferralReward, error) {
	var r domain.ReferralReward
	err := row.Scan(&r.ID, &r.ReferralID, &r.UserID, &r.Type, &r.Value, &r.Status, &r.RedeemedAt, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (q pgReferrals) CreateReward(ctx context.Context, r *domain.ReferralReward) error {
	row := q.db.QueryRow(ctx, `
		INSERT INTO referral_rewards (id, referral_id, user_id, type, value, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		r.ID, r.ReferralID, r.UserID, string(r.Type), r.Value, string(r.Status))
	return mapErr(row.Scan(&r.CreatedAt))
}

func (q pgReferrals) GetReward(ctx context.Context, id uuid.UUID) (*domain.ReferralReward, error) {
	return scanReward(q.db.QueryRow(ctx, `SELECT `+rewardColumns+` FROM referral_rewards WHERE id = $1`, id))
}

func (q pgReferrals) ListRewards(ctx context.Context, userID uuid.UUID) ([]domain.ReferralReward, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+rewardColumns+` FROM referral_rewards WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReferralReward, 0)
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q pgReferrals) RedeemReward(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx,
		`UPDATE referral_rewards SET status = 'redeemed', redeemed_at = $2 WHERE id = $1 AND status = 'available'`, id, at)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

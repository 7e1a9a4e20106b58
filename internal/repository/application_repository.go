package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/merchant-promotion-system/internal/domain/promotion"
	"github.com/fairyhunter13/merchant-promotion-system/internal/model"
	"github.com/fairyhunter13/merchant-promotion-system/internal/service"
	"github.com/fairyhunter13/merchant-promotion-system/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface = database.TxQuerier

var _ promotion.ApplicationRepository = (*ApplicationRepository)(nil)

// ApplicationRepository stores promotion applications as JSONB documents with
// queryable columns projected alongside.
type ApplicationRepository struct {
	pool PoolInterface
}

// NewApplicationRepository creates a new ApplicationRepository with the given pool.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

// NewApplicationRepositoryWithPool creates a new ApplicationRepository with a custom pool interface.
// This is primarily used for testing.
func NewApplicationRepositoryWithPool(pool PoolInterface) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

// Save inserts app when it has no applySeq yet and assigns the generated one,
// otherwise it overwrites the stored application.
// Returns service.ErrApplicationExists if another application owns the same promotion id.
func (r *ApplicationRepository) Save(ctx context.Context, app *promotion.Application) error {
	if app.ApplySeq() == 0 {
		return r.insert(ctx, app)
	}
	return r.Update(ctx, r.pool, app)
}

func (r *ApplicationRepository) insert(ctx context.Context, app *promotion.Application) error {
	doc, err := encodeDocument(app)
	if err != nil {
		return err
	}

	query := `INSERT INTO promotion_applications
		(promotion_id, promotion_kind, application_status, merchant_id, final_payment_price, document)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING apply_seq`

	var applySeq int64
	err = r.pool.QueryRow(ctx, query,
		app.Promotion().ID(),
		string(app.Promotion().Kind()),
		string(app.Status()),
		app.Merchant().ID,
		app.Order().FinalPaymentPrice(),
		doc,
	).Scan(&applySeq)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrApplicationExists
		}
		return fmt.Errorf("insert application: %w", err)
	}

	app.AssignApplySeq(applySeq)
	return nil
}

// FindByID retrieves an application by its applySeq.
// Returns nil, nil if the application is not found (service layer handles this).
func (r *ApplicationRepository) FindByID(ctx context.Context, applySeq int64) (*promotion.Application, error) {
	query := `SELECT apply_seq, document FROM promotion_applications WHERE apply_seq = $1`

	app, err := scanApplication(r.pool.QueryRow(ctx, query, applySeq))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get application %d: %w", applySeq, err)
	}
	return app, nil
}

// FindAll returns every application ordered by applySeq.
// On success, returns an empty slice (not nil) when no applications exist.
func (r *ApplicationRepository) FindAll(ctx context.Context) ([]*promotion.Application, error) {
	query := `SELECT apply_seq, document FROM promotion_applications ORDER BY apply_seq`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []*promotion.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate application rows: %w", err)
	}
	return apps, nil
}

// Delete removes an application.
// Returns service.ErrApplicationNotFound if nothing was deleted.
func (r *ApplicationRepository) Delete(ctx context.Context, applySeq int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM promotion_applications WHERE apply_seq = $1`, applySeq)
	if err != nil {
		return fmt.Errorf("delete application %d: %w", applySeq, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrApplicationNotFound
	}
	return nil
}

// FindByIDForUpdate retrieves an application with a row lock (SELECT FOR UPDATE).
// This locks the row until the transaction completes.
// Returns service.ErrApplicationNotFound if the application doesn't exist.
func (r *ApplicationRepository) FindByIDForUpdate(ctx context.Context, tx database.TxQuerier, applySeq int64) (*promotion.Application, error) {
	query := `SELECT apply_seq, document FROM promotion_applications WHERE apply_seq = $1 FOR UPDATE`

	app, err := scanApplication(tx.QueryRow(ctx, query, applySeq))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get application for update %d: %w", applySeq, err)
	}
	return app, nil
}

// Update overwrites the stored document and projected columns of app.
// Must be called within a transaction after locking the row.
func (r *ApplicationRepository) Update(ctx context.Context, tx database.TxQuerier, app *promotion.Application) error {
	doc, err := encodeDocument(app)
	if err != nil {
		return err
	}

	query := `UPDATE promotion_applications
		SET application_status = $2, final_payment_price = $3, document = $4, updated_at = NOW()
		WHERE apply_seq = $1`

	tag, err := tx.Exec(ctx, query,
		app.ApplySeq(),
		string(app.Status()),
		app.Order().FinalPaymentPrice(),
		doc,
	)
	if err != nil {
		return fmt.Errorf("update application %d: %w", app.ApplySeq(), err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrApplicationNotFound
	}
	return nil
}

func encodeDocument(app *promotion.Application) ([]byte, error) {
	doc, err := json.Marshal(model.NewApplicationDocument(app))
	if err != nil {
		return nil, fmt.Errorf("encode application document: %w", err)
	}
	return doc, nil
}

// scanApplication reads an (apply_seq, document) row. The column is authoritative for applySeq.
func scanApplication(row pgx.Row) (*promotion.Application, error) {
	var (
		applySeq int64
		raw      []byte
	)
	if err := row.Scan(&applySeq, &raw); err != nil {
		return nil, err
	}

	var doc model.ApplicationDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode application document %d: %w", applySeq, err)
	}
	doc.ApplySeq = applySeq

	app, err := doc.ToDomain()
	if err != nil {
		return nil, fmt.Errorf("rehydrate application %d: %w", applySeq, err)
	}
	return app, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dispatch-service/internal/calendar"
	"dispatch-service/internal/domain"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is a Repository backed by PostgreSQL through pgx.
type Postgres struct {
	DB DB
}

// NewPostgres wraps a pool or connection.
func NewPostgres(db DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) ListCategories(ctx context.Context) ([]domain.ServiceCategory, error) {
	q := `SELECT id,name,description,base_rate_per_hour_cents,active
	      FROM service_categories ORDER BY id`
	rows, err := p.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ServiceCategory
	for rows.Next() {
		var c domain.ServiceCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.BaseRatePerHourCts, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) GetCategory(ctx context.Context, id int64) (domain.ServiceCategory, error) {
	q := `SELECT id,name,description,base_rate_per_hour_cents,active
	      FROM service_categories WHERE id=$1`
	var c domain.ServiceCategory
	err := p.DB.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Description, &c.BaseRatePerHourCts, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ServiceCategory{}, ErrNotFound
	}
	return c, err
}

func (p *Postgres) CreateCategory(ctx context.Context, c domain.ServiceCategory) (domain.ServiceCategory, error) {
	q := `INSERT INTO service_categories (name,description,base_rate_per_hour_cents,active)
	      VALUES ($1,$2,$3,$4) RETURNING id`
	err := p.DB.QueryRow(ctx, q, c.Name, c.Description, c.BaseRatePerHourCts, c.Active).Scan(&c.ID)
	return c, err
}

func (p *Postgres) GetClient(ctx context.Context, id string) (domain.Client, error) {
	q := `SELECT id,name,email,payment_account,rating,rating_count,version
	      FROM clients WHERE id=$1`
	var c domain.Client
	err := p.DB.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.Email, &c.PaymentAccount,
		&c.Rating, &c.RatingCount, &c.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Client{}, ErrNotFound
	}
	return c, err
}

func (p *Postgres) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version = 1
	q := `INSERT INTO clients (id,name,email,payment_account,rating,rating_count,version)
	      VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := p.DB.Exec(ctx, q, c.ID, c.Name, c.Email, c.PaymentAccount, c.Rating, c.RatingCount, c.Version)
	return c, err
}

func (p *Postgres) UpdateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	q := `UPDATE clients
	      SET name=$1, email=$2, payment_account=$3, rating=$4, rating_count=$5,
	          version=version+1, updated_at=now()
	      WHERE id=$6 AND version=$7
	      RETURNING version`
	err := p.DB.QueryRow(ctx, q, c.Name, c.Email, c.PaymentAccount, c.Rating, c.RatingCount,
		c.ID, c.Version).Scan(&c.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Client{}, p.missOrConflict(ctx, "clients", c.ID)
	}
	return c, err
}

const workerColumns = `id,name,email,active,category_ids,weekly_template,calendar,horizon_start,busy_blocks,rating,rating_count,version`

func (p *Postgres) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	q := `SELECT ` + workerColumns + ` FROM workers WHERE id=$1`
	w, err := scanWorker(p.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Worker{}, ErrNotFound
	}
	return w, err
}

func (p *Postgres) ListWorkers(ctx context.Context, f WorkerFilter) ([]domain.Worker, error) {
	q := `SELECT ` + workerColumns + ` FROM workers
	      WHERE ($1::boolean = false OR active = true)
	        AND ($2::bigint = 0 OR $2::bigint = ANY(category_ids))
	        AND (cardinality($3::text[]) = 0 OR EXISTS (
	              SELECT 1 FROM unnest($3::text[]) AS term
	              WHERE term = ANY(category_ids::text[])
	                 OR name ILIKE '%' || term || '%'
	                 OR email ILIKE '%' || term || '%'))
	      ORDER BY id`
	terms := f.Terms
	if terms == nil {
		terms = []string{}
	}
	rows, err := p.DB.Query(ctx, q, f.ActiveOnly, f.CategoryID, terms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateWorker(ctx context.Context, w domain.Worker) (domain.Worker, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	w.Version = 1
	tmpl, cal, busy, err := encodeSchedule(w)
	if err != nil {
		return domain.Worker{}, err
	}
	q := `INSERT INTO workers (` + workerColumns + `)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = p.DB.Exec(ctx, q, w.ID, w.Name, w.Email, w.Active, categoryIDs(w.Categories), tmpl, cal,
		w.HorizonStart, busy, w.Rating, w.RatingCount, w.Version)
	return w, err
}

func (p *Postgres) UpdateWorker(ctx context.Context, w domain.Worker) (domain.Worker, error) {
	tmpl, cal, busy, err := encodeSchedule(w)
	if err != nil {
		return domain.Worker{}, err
	}
	q := `UPDATE workers
	      SET name=$1, email=$2, active=$3, category_ids=$4, weekly_template=$5, calendar=$6,
	          horizon_start=$7, busy_blocks=$8, rating=$9, rating_count=$10, version=version+1, updated_at=now()
	      WHERE id=$11 AND version=$12
	      RETURNING version`
	err = p.DB.QueryRow(ctx, q, w.Name, w.Email, w.Active, categoryIDs(w.Categories), tmpl, cal,
		w.HorizonStart, busy, w.Rating, w.RatingCount, w.ID, w.Version).Scan(&w.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Worker{}, p.missOrConflict(ctx, "workers", w.ID)
	}
	return w, err
}

const jobColumns = `id,client_id,worker_id,category_id,description,specifications,location,
	requested_at,start_time,end_time,status,amount_cents,payment_method,payment_status,payment_reference,
	started_at,completed_at,duration_hours,worker_rating,worker_comment,client_rating,client_comment,
	created_at,updated_at,version`

func (p *Postgres) GetJob(ctx context.Context, id string) (domain.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id=$1`
	j, err := scanJob(p.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	return j, err
}

func (p *Postgres) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	where, args := jobFilterSQL(f)
	q := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY start_time, id`
	rows, err := p.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	j.Version = 1
	q := `INSERT INTO jobs (` + jobColumns + `)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`
	_, err := p.DB.Exec(ctx, q, j.ID, j.ClientID, j.WorkerID, j.CategoryID, j.Description,
		j.Specifications, j.Location, j.RequestedAt, j.StartTime, j.EndTime, string(j.Status),
		j.AmountCents, string(j.PaymentMethod), string(j.PaymentStatus), j.PaymentReference,
		j.StartedAt, j.CompletedAt, j.DurationHours, j.WorkerRating, j.WorkerComment,
		j.ClientRating, j.ClientComment, j.CreatedAt, j.UpdatedAt, j.Version)
	return j, err
}

// UpdateJob writes every mutable column when the stored version still matches.
func (p *Postgres) UpdateJob(ctx context.Context, j domain.Job) (domain.Job, error) {
	q := `UPDATE jobs
	      SET worker_id=$1, status=$2, payment_status=$3, payment_reference=$4, started_at=$5,
	          completed_at=$6, duration_hours=$7, worker_rating=$8, worker_comment=$9,
	          client_rating=$10, client_comment=$11, updated_at=$12, version=version+1
	      WHERE id=$13 AND version=$14
	      RETURNING version`
	err := p.DB.QueryRow(ctx, q, j.WorkerID, string(j.Status), string(j.PaymentStatus),
		j.PaymentReference, j.StartedAt, j.CompletedAt, j.DurationHours, j.WorkerRating,
		j.WorkerComment, j.ClientRating, j.ClientComment, j.UpdatedAt, j.ID, j.Version).Scan(&j.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, p.missOrConflict(ctx, "jobs", j.ID)
	}
	return j, err
}

// missOrConflict tells a missing row from a stale version after a guarded
// update matched nothing.
func (p *Postgres) missOrConflict(ctx context.Context, table, id string) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id=$1)`
	if err := p.DB.QueryRow(ctx, q, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func jobFilterSQL(f JobFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.WorkerID != "" {
		add("worker_id=$%d", f.WorkerID)
	}
	if f.ClientID != "" {
		add("client_id=$%d", f.ClientID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if !f.StartFrom.IsZero() {
		add("start_time >= $%d", f.StartFrom)
	}
	if !f.StartTo.IsZero() {
		add("start_time < $%d", f.StartTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func encodeSchedule(w domain.Worker) (tmpl, cal, busy []byte, err error) {
	if tmpl, err = json.Marshal(w.Template); err != nil {
		return nil, nil, nil, fmt.Errorf("encode weekly template: %w", err)
	}
	if cal, err = json.Marshal(w.Calendar); err != nil {
		return nil, nil, nil, fmt.Errorf("encode calendar: %w", err)
	}
	blocks := w.BusyBlocks
	if blocks == nil {
		blocks = []calendar.Commitment{}
	}
	if busy, err = json.Marshal(blocks); err != nil {
		return nil, nil, nil, fmt.Errorf("encode busy blocks: %w", err)
	}
	return tmpl, cal, busy, nil
}

// categoryIDs keeps a worker without categories from writing NULL into the
// NOT NULL array column.
func categoryIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func scanWorker(row pgx.Row) (domain.Worker, error) {
	var (
		w               domain.Worker
		tmpl, cal, busy []byte
	)
	if err := row.Scan(&w.ID, &w.Name, &w.Email, &w.Active, &w.Categories, &tmpl, &cal,
		&w.HorizonStart, &busy, &w.Rating, &w.RatingCount, &w.Version); err != nil {
		return domain.Worker{}, err
	}
	if len(busy) > 0 {
		if err := json.Unmarshal(busy, &w.BusyBlocks); err != nil {
			return domain.Worker{}, fmt.Errorf("decode busy blocks of worker %s: %w", w.ID, err)
		}
	}
	if len(tmpl) > 0 {
		if err := json.Unmarshal(tmpl, &w.Template); err != nil {
			return domain.Worker{}, fmt.Errorf("decode weekly template of worker %s: %w", w.ID, err)
		}
	}
	if len(cal) > 0 {
		if err := json.Unmarshal(cal, &w.Calendar); err != nil {
			return domain.Worker{}, fmt.Errorf("decode calendar of worker %s: %w", w.ID, err)
		}
	}
	return w, nil
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		j                             domain.Job
		status, method, paymentStatus string
	)
	err := row.Scan(&j.ID, &j.ClientID, &j.WorkerID, &j.CategoryID, &j.Description,
		&j.Specifications, &j.Location, &j.RequestedAt, &j.StartTime, &j.EndTime, &status,
		&j.AmountCents, &method, &paymentStatus, &j.PaymentReference, &j.StartedAt,
		&j.CompletedAt, &j.DurationHours, &j.WorkerRating, &j.WorkerComment, &j.ClientRating,
		&j.ClientComment, &j.CreatedAt, &j.UpdatedAt, &j.Version)
	if err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.Status(status)
	j.PaymentMethod = domain.PaymentMethod(method)
	j.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return j, nil
}

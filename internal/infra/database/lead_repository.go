package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/xavierca1/zag-leads/internal/entity"
)

type LeadRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewLeadRepository(db *sql.DB, d Dialect) *LeadRepository {
	return &LeadRepository{DB: db, Dialect: d}
}

const leadColumns = `id, email, first_name, last_name, company, title, linkedin_url, industry, website,
	interested_in, source, audience, score, tier, engagement_signal, sequence_step, status,
	created_at, updated_at, enrolled_at, last_contacted_at, next_action_at`

func (r *LeadRepository) LoadAll(ctx context.Context) ([]*entity.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+leadColumns+" FROM leads")
	if err != nil {
		return nil, fmt.Errorf("database: load leads: %w", err)
	}
	defer rows.Close()

	var out []*entity.Lead
	for rows.Next() {
		var (
			l                               entity.Lead
			enrolled, contacted, nextAction sql.NullTime
		)
		err := rows.Scan(
			&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Company, &l.Title, &l.LinkedInURL, &l.Industry, &l.Website,
			&l.InterestedIn, &l.Source, &l.Audience, &l.Score, &l.Tier, &l.EngagementSignal, &l.SequenceStep, &l.Status,
			&l.CreatedAt, &l.UpdatedAt, &enrolled, &contacted, &nextAction,
		)
		if err != nil {
			return nil, fmt.Errorf("database: scan lead: %w", err)
		}
		l.CreatedAt = l.CreatedAt.UTC()
		l.UpdatedAt = l.UpdatedAt.UTC()
		l.EnrolledAt = fromNullTime(enrolled)
		l.LastContactedAt = fromNullTime(contacted)
		l.NextActionAt = fromNullTime(nextAction)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Save inserts or fully replaces the row for lead.ID.
func (r *LeadRepository) Save(ctx context.Context, l *entity.Lead) error {
	cols := strings.Split(strings.Join(strings.Fields(leadColumns), ""), ",")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	query := fmt.Sprintf(
		"INSERT INTO leads (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(cols, ", "), placeholders, strings.Join(updates, ", "),
	)

	_, err := r.DB.ExecContext(ctx, rebind(r.Dialect, query),
		l.ID, l.Email, l.FirstName, l.LastName, l.Company, l.Title, l.LinkedInURL, l.Industry, l.Website,
		string(l.InterestedIn), l.Source, string(l.Audience), l.Score, string(l.Tier), l.EngagementSignal, l.SequenceStep, string(l.Status),
		l.CreatedAt.UTC(), l.UpdatedAt.UTC(), toNullTime(l.EnrolledAt), toNullTime(l.LastContactedAt), toNullTime(l.NextActionAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entity.ErrEmailAlreadyExists
		}
		return fmt.Errorf("database: save lead %s: %w", l.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propintel/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) InsertBrokers(ctx context.Context, brokers []models.Broker) (int64, error) {
	rows := make([][]any, 0, len(brokers))
	for _, b := range brokers {
		rows = append(rows, []any{b.ID, b.Name, b.Phone, b.Areas, b.CurrentLoad, b.UpdatedAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"brokers"}, []string{"id", "name", "phone", "areas", "current_load", "updated_at"}, pgx.CopyFromRows(rows))
}

func (s *Store) InsertClients(ctx context.Context, clients []models.Client) (int64, error) {
	rows := make([][]any, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []any{
			c.ID, c.Name, c.Phone, c.BudgetMin, c.BudgetMax, c.PreferredAreas, categoryStrings(c.Categories),
			c.AreaMin, c.AreaMax, c.BedroomsMin, c.BathroomsMin, c.UrgencyLevel, c.LastContactAt,
			c.ContactFrequency, c.InteractionScore, string(c.Status), c.AssignedBrokerID, c.CreatedAt, c.UpdatedAt,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"clients"}, clientColumns, pgx.CopyFromRows(rows))
}

func (s *Store) InsertProperties(ctx context.Context, props []models.Property) (int64, error) {
	rows := make([][]any, 0, len(props))
	for _, p := range props {
		rows = append(rows, []any{
			p.ID, p.Title, p.Price, p.Size, p.Bedrooms, p.Bathrooms, string(p.Category), p.AreaName,
			p.District, p.City, p.ListedAt, string(p.Status), p.Views, p.Inquiries,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"properties"}, propertyColumns, pgx.CopyFromRows(rows))
}

func (s *Store) InsertSentProperties(ctx context.Context, sent []models.SentProperty) (int64, error) {
	rows := make([][]any, 0, len(sent))
	for _, sp := range sent {
		rows = append(rows, []any{sp.ClientID, sp.PropertyID, sp.SentAt})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"sent_properties"}, []string{"client_id", "property_id", "sent_at"}, pgx.CopyFromRows(rows))
}

var clientColumns = []string{
	"id", "name", "phone", "budget_min", "budget_max", "preferred_areas", "categories",
	"area_min", "area_max", "bedrooms_min", "bathrooms_min", "urgency_level", "last_contact_at",
	"contact_frequency", "interaction_score", "status", "assigned_broker_id", "created_at", "updated_at",
}

var propertyColumns = []string{
	"id", "title", "price", "size", "bedrooms", "bathrooms", "category", "area_name",
	"district", "city", "listed_at", "status", "views", "inquiries",
}

func (s *Store) ListClients(ctx context.Context, status string) ([]models.Client, error) {
	query := `SELECT ` + strings.Join(clientColumns, ", ") + ` FROM clients`
	var args []any
	if status != "" {
		args = append(args, status)
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetClient returns pgx.ErrNoRows when the client does not exist.
func (s *Store) GetClient(ctx context.Context, id string) (models.Client, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+strings.Join(clientColumns, ", ")+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func scanClient(row pgx.Row) (models.Client, error) {
	var (
		c          models.Client
		categories []string
		status     string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.BudgetMin, &c.BudgetMax, &c.PreferredAreas, &categories,
		&c.AreaMin, &c.AreaMax, &c.BedroomsMin, &c.BathroomsMin, &c.UrgencyLevel, &c.LastContactAt,
		&c.ContactFrequency, &c.InteractionScore, &status, &c.AssignedBrokerID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.Client{}, err
	}
	c.Status = models.ClientStatus(status)
	for _, cat := range categories {
		c.Categories = append(c.Categories, models.Category(cat))
	}
	return c, nil
}

func (s *Store) ListProperties(ctx context.Context, area, category, status string, limit, offset int) ([]models.Property, error) {
	query := `SELECT ` + strings.Join(propertyColumns, ", ") + ` FROM properties`
	var args []any
	var wheres []string
	if area != "" {
		args = append(args, area)
		wheres = append(wheres, fmt.Sprintf("lower(area_name) = lower($%d)", len(args)))
	}
	if category != "" {
		args = append(args, category)
		wheres = append(wheres, fmt.Sprintf("category = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY listed_at ASC, id ASC"
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		query += " LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Property
	for rows.Next() {
		var (
			p        models.Property
			category string
			status   string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Size, &p.Bedrooms, &p.Bathrooms, &category, &p.AreaName,
			&p.District, &p.City, &p.ListedAt, &status, &p.Views, &p.Inquiries); err != nil {
			return nil, err
		}
		p.Category = models.Category(category)
		p.Status = models.PropertyStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListBrokers(ctx context.Context) ([]models.Broker, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, phone, areas, current_load, updated_at FROM brokers ORDER BY current_load ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Broker
	for rows.Next() {
		var b models.Broker
		if err := rows.Scan(&b.ID, &b.Name, &b.Phone, &b.Areas, &b.CurrentLoad, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListSentProperties returns the sent history of one client, or of every
// client when clientID is empty.
func (s *Store) ListSentProperties(ctx context.Context, clientID string) ([]models.SentProperty, error) {
	query := `SELECT client_id, property_id, sent_at FROM sent_properties`
	var args []any
	if clientID != "" {
		args = append(args, clientID)
		query += " WHERE client_id = $1"
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SentProperty
	for rows.Next() {
		var sp models.SentProperty
		if err := rows.Scan(&sp.ClientID, &sp.PropertyID, &sp.SentAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// ReplaceMatches swaps the stored matches of a client for a fresh set.
func (s *Store) ReplaceMatches(ctx context.Context, tx pgx.Tx, clientID string, matches []models.PropertyMatch, computedAt time.Time) error {
	if _, err := tx.Exec(ctx, `DELETE FROM property_matches WHERE client_id = $1`, clientID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, m := range matches {
		batch.Queue(`
			INSERT INTO property_matches (client_id, property_id, score, reasons, previously_sent, last_sent_at, computed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, m.ClientID, m.PropertyID, m.Score, m.Reasons, m.PreviouslySent, m.LastSentAt, computedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *Store) UpsertIntentScore(ctx context.Context, tx pgx.Tx, score models.ClientIntentScore) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO client_intent_scores (client_id, contact_frequency_score, urgency_score, clarity_score, interaction_score, overall_score, positive_factors, negative_factors, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (client_id) DO UPDATE SET
			contact_frequency_score = EXCLUDED.contact_frequency_score,
			urgency_score = EXCLUDED.urgency_score,
			clarity_score = EXCLUDED.clarity_score,
			interaction_score = EXCLUDED.interaction_score,
			overall_score = EXCLUDED.overall_score,
			positive_factors = EXCLUDED.positive_factors,
			negative_factors = EXCLUDED.negative_factors,
			computed_at = EXCLUDED.computed_at
	`, score.ClientID, score.ContactFrequency, score.Urgency, score.Clarity, score.Interaction, score.Overall,
		score.PositiveFactors, score.NegativeFactors, score.ComputedAt)
	return err
}

func (s *Store) InsertInsights(ctx context.Context, tx pgx.Tx, insights []models.MarketInsight) error {
	batch := &pgx.Batch{}
	for _, in := range insights {
		batch.Queue(`
			INSERT INTO market_insights (id, area_name, category, kind, title, description, avg_price, avg_size, supply_level, demand_level, price_trend, avg_days_on_market, total_count, available_count, confidence, created_at, expires_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (id) DO NOTHING
		`, in.ID, in.AreaName, string(in.Category), string(in.Kind), in.Title, in.Description, in.AvgPrice, in.AvgSize,
			string(in.SupplyLevel), string(in.DemandLevel), string(in.PriceTrend), in.AvgDaysOnMarket,
			in.TotalCount, in.AvailableCount, in.Confidence, in.CreatedAt, in.ExpiresAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *Store) InsertRecommendations(ctx context.Context, tx pgx.Tx, recs []models.BrokerRecommendation) error {
	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(`
			INSERT INTO broker_recommendations (id, kind, priority, title, message, client_id, property_id, broker_id, read, action_required, deadline, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, string(r.Kind), string(r.Priority), r.Title, r.Message, r.ClientID, r.PropertyID, r.BrokerID,
			r.Read, r.ActionRequired, r.Deadline, r.CreatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ListInsights returns insights that have not expired at now, newest first.
func (s *Store) ListInsights(ctx context.Context, area, category string, now time.Time) ([]models.MarketInsight, error) {
	query := `SELECT id::text, area_name, category, kind, title, description, avg_price, avg_size, supply_level, demand_level, price_trend, avg_days_on_market, total_count, available_count, confidence, created_at, expires_at
		FROM market_insights`
	args := []any{now}
	wheres := []string{"expires_at > $1"}
	if area != "" {
		args = append(args, area)
		wheres = append(wheres, fmt.Sprintf("lower(area_name) = lower($%d)", len(args)))
	}
	if category != "" {
		args = append(args, category)
		wheres = append(wheres, fmt.Sprintf("category = $%d", len(args)))
	}
	query += " WHERE " + strings.Join(wheres, " AND ") + " ORDER BY created_at DESC, area_name ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MarketInsight
	for rows.Next() {
		var (
			in                                    models.MarketInsight
			category, kind, supply, demand, trend string
		)
		if err := rows.Scan(&in.ID, &in.AreaName, &category, &kind, &in.Title, &in.Description, &in.AvgPrice, &in.AvgSize,
			&supply, &demand, &trend, &in.AvgDaysOnMarket, &in.TotalCount, &in.AvailableCount, &in.Confidence,
			&in.CreatedAt, &in.ExpiresAt); err != nil {
			return nil, err
		}
		in.Category = models.Category(category)
		in.Kind = models.InsightKind(kind)
		in.SupplyLevel = models.Level(supply)
		in.DemandLevel = models.Level(demand)
		in.PriceTrend = models.PriceTrend(trend)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) ListRecommendations(ctx context.Context, clientID string, unreadOnly bool, limit, offset int) ([]models.BrokerRecommendation, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id::text, kind, priority, title, message, client_id, property_id, broker_id, read, action_required, deadline, created_at
		FROM broker_recommendations`
	var args []any
	var wheres []string
	if clientID != "" {
		args = append(args, clientID)
		wheres = append(wheres, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if unreadOnly {
		wheres = append(wheres, "read = FALSE")
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += ` ORDER BY CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC, created_at DESC`
	query += " LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BrokerRecommendation
	for rows.Next() {
		var (
			r              models.BrokerRecommendation
			kind, priority string
		)
		if err := rows.Scan(&r.ID, &kind, &priority, &r.Title, &r.Message, &r.ClientID, &r.PropertyID, &r.BrokerID,
			&r.Read, &r.ActionRequired, &r.Deadline, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Kind = models.RecommendationKind(kind)
		r.Priority = models.Priority(priority)
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkRecommendationRead returns pgx.ErrNoRows when no recommendation has the
// given id.
func (s *Store) MarkRecommendationRead(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE broker_recommendations SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) CreateRun(ctx context.Context, kind, status string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `INSERT INTO runs (kind, status, started_at) VALUES ($1, $2, NOW()) RETURNING id::text`, kind, status).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

// GetLatestRun returns the most recent run of kind, or of any kind when kind
// is empty.
func (s *Store) GetLatestRun(ctx context.Context, kind string) (models.Run, error) {
	query := `SELECT id::text, kind, status, started_at, finished_at, summary FROM runs`
	var args []any
	if kind != "" {
		args = append(args, kind)
		query += " WHERE kind = $1"
	}
	query += " ORDER BY started_at DESC LIMIT 1"

	var r models.Run
	var summary []byte
	if err := s.Pool.QueryRow(ctx, query, args...).Scan(&r.ID, &r.Kind, &r.Status, &r.StartedAt, &r.FinishedAt, &summary); err != nil {
		return models.Run{}, err
	}
	r.Summary = summary
	return r, nil
}

func categoryStrings(cats []models.Category) []string {
	out := make([]string, 0, len(cats))
	for _, c := range cats {
		out = append(out, string(c))
	}
	return out
}

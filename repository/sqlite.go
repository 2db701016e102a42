package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/BerniceZTT/leadops/models"
	"github.com/BerniceZTT/leadops/utils"
)

const (
	leadsTable       = "leads"
	alertsTable      = "duplicate_alerts"
	resolutionsTable = "duplicate_resolutions"
)

var leadColumns = []string{
	"id", "company_name", "contact_person", "contact_mobile", "contact_email", "course", "value",
	"submitted_by_id", "submitted_by_name", "submitted_by_role", "status",
	"credit_share", "credit_owner", "duplicate_of", "resolved_by_alert",
	"version", "created_at", "updated_at",
}

var alertColumns = []string{
	"id", "lead_a_id", "lead_b_id", "lead_a_data", "lead_b_data",
	"similarity_score", "similarity_factors", "detected_at", "status",
	"action", "resolved_by_id", "resolved_by_name", "resolved_by_role", "resolved_at", "notes",
	"credit_assigned_to", "duplicate_of", "duplicate_lead_id",
}

var resolutionColumns = []string{
	"id", "alert_id", "action", "actor_id", "actor_name", "actor_role", "notes",
	"lead_a_id", "lead_b_id", "credit_assigned_to", "canonical_lead_id", "duplicate_lead_id",
	"credit", "created_at",
}

// sqliteMigrations 按版本顺序执行，版本号记录在 schema_migrations
var sqliteMigrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS leads (
			id                TEXT PRIMARY KEY,
			company_name      TEXT NOT NULL,
			contact_person    TEXT NOT NULL DEFAULT '',
			contact_mobile    TEXT NOT NULL DEFAULT '',
			contact_email     TEXT NOT NULL DEFAULT '',
			course            TEXT NOT NULL DEFAULT '',
			value             REAL NOT NULL DEFAULT 0,
			submitted_by_id   TEXT NOT NULL DEFAULT '',
			submitted_by_name TEXT NOT NULL DEFAULT '',
			submitted_by_role TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL,
			credit_share      INTEGER NOT NULL DEFAULT 100,
			credit_owner      INTEGER NOT NULL DEFAULT 1,
			duplicate_of      TEXT NOT NULL DEFAULT '',
			resolved_by_alert TEXT NOT NULL DEFAULT '',
			version           INTEGER NOT NULL DEFAULT 1,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS duplicate_alerts (
			id                 TEXT PRIMARY KEY,
			lead_a_id          TEXT NOT NULL REFERENCES leads(id),
			lead_b_id          TEXT NOT NULL REFERENCES leads(id),
			lead_a_data        TEXT NOT NULL,
			lead_b_data        TEXT NOT NULL,
			similarity_score   REAL NOT NULL DEFAULT 0,
			similarity_factors TEXT NOT NULL DEFAULT '[]',
			detected_at        DATETIME NOT NULL,
			status             TEXT NOT NULL DEFAULT 'pending',
			action             TEXT NOT NULL DEFAULT '',
			resolved_by_id     TEXT NOT NULL DEFAULT '',
			resolved_by_name   TEXT NOT NULL DEFAULT '',
			resolved_by_role   TEXT NOT NULL DEFAULT '',
			resolved_at        DATETIME,
			notes              TEXT NOT NULL DEFAULT '',
			credit_assigned_to TEXT NOT NULL DEFAULT '',
			duplicate_of       TEXT NOT NULL DEFAULT '',
			duplicate_lead_id  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_alerts_status ON duplicate_alerts(status, detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_duplicate_alerts_pair ON duplicate_alerts(lead_a_id, lead_b_id)`,
		`CREATE TABLE IF NOT EXISTS duplicate_resolutions (
			id                 TEXT PRIMARY KEY,
			alert_id           TEXT NOT NULL UNIQUE REFERENCES duplicate_alerts(id),
			action             TEXT NOT NULL,
			actor_id           TEXT NOT NULL,
			actor_name         TEXT NOT NULL DEFAULT '',
			actor_role         TEXT NOT NULL DEFAULT '',
			notes              TEXT NOT NULL DEFAULT '',
			lead_a_id          TEXT NOT NULL,
			lead_b_id          TEXT NOT NULL,
			credit_assigned_to TEXT NOT NULL DEFAULT '',
			canonical_lead_id  TEXT NOT NULL DEFAULT '',
			duplicate_lead_id  TEXT NOT NULL DEFAULT '',
			credit             TEXT NOT NULL DEFAULT '{}',
			created_at         DATETIME NOT NULL
		)`,
	},
}

// SQLiteStore 基于 modernc.org/sqlite 的 Store 实现，用于单机部署与测试
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite 打开 SQLite 数据库并设置 WAL、外键与忙等待
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}

	// 单连接，事务天然串行
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate 执行未应用的迁移
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return eris.Wrap(err, "sqlite: create schema_migrations")
	}

	for i, stmts := range sqliteMigrations {
		version := i + 1

		var exists int
		if err := s.db.GetContext(ctx, &exists, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version); err != nil {
			return eris.Wrapf(err, "sqlite: check migration %d", version)
		}
		if exists > 0 {
			continue
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return eris.Wrapf(err, "sqlite: begin migration %d", version)
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return eris.Wrapf(err, "sqlite: migration %d", version)
			}
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return eris.Wrapf(err, "sqlite: record migration %d", version)
		}
		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "sqlite: commit migration %d", version)
		}
		utils.Logger.Info().Int("version", version).Msg("SQLite迁移完成")
	}
	return nil
}

func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(leadsTable)
	ib.Cols(leadColumns...)
	ib.Values(
		lead.ID, lead.CompanyName, lead.ContactPerson, lead.ContactMobile, lead.ContactEmail, lead.Course, lead.Value,
		lead.SubmittedByID, lead.SubmittedByName, lead.SubmittedByRole, string(lead.Status),
		lead.CreditShare, lead.CreditOwner, lead.DuplicateOf, lead.ResolvedByAlert,
		lead.Version, lead.CreatedAt.UTC(), lead.UpdatedAt.UTC(),
	)

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
	}
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	return getLead(ctx, s.db, id)
}

func getLead(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Lead, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(leadColumns...)
	sb.From(leadsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var lead models.Lead
	if err := sqlx.GetContext(ctx, q, &lead, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	lead.UpdatedAt = lead.UpdatedAt.UTC()
	return &lead, nil
}

// alertRow duplicate_alerts 表的行结构，快照与相似因素以 JSON 文本存储
type alertRow struct {
	ID                string     `db:"id"`
	LeadAID           string     `db:"lead_a_id"`
	LeadBID           string     `db:"lead_b_id"`
	LeadAData         string     `db:"lead_a_data"`
	LeadBData         string     `db:"lead_b_data"`
	SimilarityScore   float64    `db:"similarity_score"`
	SimilarityFactors string     `db:"similarity_factors"`
	DetectedAt        time.Time  `db:"detected_at"`
	Status            string     `db:"status"`
	Action            string     `db:"action"`
	ResolvedByID      string     `db:"resolved_by_id"`
	ResolvedByName    string     `db:"resolved_by_name"`
	ResolvedByRole    string     `db:"resolved_by_role"`
	ResolvedAt        *time.Time `db:"resolved_at"`
	Notes             string     `db:"notes"`
	CreditAssignedTo  string     `db:"credit_assigned_to"`
	DuplicateOf       string     `db:"duplicate_of"`
	DuplicateLeadID   string     `db:"duplicate_lead_id"`
}

func (r *alertRow) toModel() (*models.DuplicateAlert, error) {
	alert := &models.DuplicateAlert{
		ID:               r.ID,
		LeadAID:          r.LeadAID,
		LeadBID:          r.LeadBID,
		SimilarityScore:  r.SimilarityScore,
		DetectedAt:       r.DetectedAt.UTC(),
		Status:           models.AlertStatus(r.Status),
		Action:           models.ResolutionAction(r.Action),
		ResolvedAt:       r.ResolvedAt,
		Notes:            r.Notes,
		CreditAssignedTo: r.CreditAssignedTo,
		DuplicateOf:      r.DuplicateOf,
		DuplicateLeadID:  r.DuplicateLeadID,
	}
	if err := json.Unmarshal([]byte(r.LeadAData), &alert.LeadAData); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode lead_a_data of alert %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.LeadBData), &alert.LeadBData); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode lead_b_data of alert %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.SimilarityFactors), &alert.SimilarityFactors); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode similarity_factors of alert %s", r.ID)
	}
	if alert.ResolvedAt != nil {
		resolvedAt := alert.ResolvedAt.UTC()
		alert.ResolvedAt = &resolvedAt
	}
	if r.ResolvedByID != "" {
		alert.ResolvedBy = &models.Actor{
			ID:   r.ResolvedByID,
			Name: r.ResolvedByName,
			Role: models.UserRole(r.ResolvedByRole),
		}
	}
	return alert, nil
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, alert *models.DuplicateAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.SimilarityFactors == nil {
		alert.SimilarityFactors = []string{}
	}

	leadA, err := json.Marshal(alert.LeadAData)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode lead_a_data")
	}
	leadB, err := json.Marshal(alert.LeadBData)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode lead_b_data")
	}
	factors, err := json.Marshal(alert.SimilarityFactors)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode similarity_factors")
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(alertsTable)
	ib.Cols("id", "lead_a_id", "lead_b_id", "lead_a_data", "lead_b_data", "similarity_score", "similarity_factors", "detected_at", "status")
	ib.Values(alert.ID, alert.LeadAID, alert.LeadBID, string(leadA), string(leadB), alert.SimilarityScore, string(factors), alert.DetectedAt.UTC(), string(alert.Status))

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert alert %s", alert.ID)
	}
	return nil
}

func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*models.DuplicateAlert, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(alertColumns...)
	sb.From(alertsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var row alertRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get alert %s", id)
	}
	return row.toModel()
}

func (s *SQLiteStore) FindPendingAlertByPair(ctx context.Context, leadA, leadB string) (*models.DuplicateAlert, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(alertColumns...)
	sb.From(alertsTable)
	sb.Where(
		sb.Equal("status", string(models.AlertStatusPending)),
		sb.Or(
			sb.And(sb.Equal("lead_a_id", leadA), sb.Equal("lead_b_id", leadB)),
			sb.And(sb.Equal("lead_a_id", leadB), sb.Equal("lead_b_id", leadA)),
		),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var row alertRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find alert by pair")
	}
	return row.toModel()
}

func (s *SQLiteStore) ListAlerts(ctx context.Context, status models.AlertStatus, limit int) ([]models.DuplicateAlert, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(alertColumns...)
	sb.From(alertsTable)
	sb.Where(sb.Equal("status", string(status)))
	if status == models.AlertStatusPending {
		sb.OrderBy("detected_at ASC", "id ASC")
	} else {
		sb.OrderBy("resolved_at DESC", "id ASC")
	}
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s alerts", status)
	}

	alerts := make([]models.DuplicateAlert, 0, len(rows))
	for i := range rows {
		alert, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *alert)
	}
	return alerts, nil
}

func (s *SQLiteStore) ApplyResolution(ctx context.Context, alert *models.DuplicateAlert, leads []LeadUpdate, res *models.Resolution) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin resolution")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var resolvedBy models.Actor
	if alert.ResolvedBy != nil {
		resolvedBy = *alert.ResolvedBy
	}

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update(alertsTable)
	ub.Set(
		ub.Assign("status", string(models.AlertStatusResolved)),
		ub.Assign("action", string(alert.Action)),
		ub.Assign("resolved_by_id", resolvedBy.ID),
		ub.Assign("resolved_by_name", resolvedBy.Name),
		ub.Assign("resolved_by_role", string(resolvedBy.Role)),
		ub.Assign("resolved_at", resolvedAtUTC(alert.ResolvedAt)),
		ub.Assign("notes", alert.Notes),
		ub.Assign("credit_assigned_to", alert.CreditAssignedTo),
		ub.Assign("duplicate_of", alert.DuplicateOf),
		ub.Assign("duplicate_lead_id", alert.DuplicateLeadID),
	)
	ub.Where(
		ub.Equal("id", alert.ID),
		ub.Equal("status", string(models.AlertStatusPending)),
	)

	query, args := ub.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve alert %s", alert.ID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var exists int
		if err = tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM duplicate_alerts WHERE id = ?", alert.ID); err != nil {
			return eris.Wrapf(err, "sqlite: check alert %s", alert.ID)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrAlertNotPending
	}

	for _, lu := range leads {
		if err = updateLeadTx(ctx, tx, lu); err != nil {
			return err
		}
	}

	if err = insertResolutionTx(ctx, tx, res); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit resolution")
	}
	return nil
}

func updateLeadTx(ctx context.Context, tx *sqlx.Tx, lu LeadUpdate) error {
	lead := lu.Lead

	ub := sqlbuilder.SQLite.NewUpdateBuilder()
	ub.Update(leadsTable)
	ub.Set(
		ub.Assign("status", string(lead.Status)),
		ub.Assign("credit_share", lead.CreditShare),
		ub.Assign("credit_owner", lead.CreditOwner),
		ub.Assign("duplicate_of", lead.DuplicateOf),
		ub.Assign("resolved_by_alert", lead.ResolvedByAlert),
		ub.Assign("version", lead.Version),
		ub.Assign("updated_at", lead.UpdatedAt.UTC()),
	)
	ub.Where(
		ub.Equal("id", lead.ID),
		ub.Equal("version", lu.ExpectedVersion),
	)

	query, args := ub.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrLeadVersionMismatch
	}
	return nil
}

func insertResolutionTx(ctx context.Context, tx *sqlx.Tx, res *models.Resolution) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	credit := res.Credit
	if credit == nil {
		credit = map[string]int{}
	}
	creditJSON, err := json.Marshal(credit)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode credit")
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto(resolutionsTable)
	ib.Cols(resolutionColumns...)
	ib.Values(
		res.ID, res.AlertID, string(res.Action), res.Actor.ID, res.Actor.Name, string(res.Actor.Role), res.Notes,
		res.LeadAID, res.LeadBID, res.CreditAssignedTo, res.CanonicalLeadID, res.DuplicateLeadID,
		string(creditJSON), res.CreatedAt.UTC(),
	)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "sqlite: insert resolution for alert %s", res.AlertID)
	}
	return nil
}

type resolutionRow struct {
	ID               string    `db:"id"`
	AlertID          string    `db:"alert_id"`
	Action           string    `db:"action"`
	ActorID          string    `db:"actor_id"`
	ActorName        string    `db:"actor_name"`
	ActorRole        string    `db:"actor_role"`
	Notes            string    `db:"notes"`
	LeadAID          string    `db:"lead_a_id"`
	LeadBID          string    `db:"lead_b_id"`
	CreditAssignedTo string    `db:"credit_assigned_to"`
	CanonicalLeadID  string    `db:"canonical_lead_id"`
	DuplicateLeadID  string    `db:"duplicate_lead_id"`
	Credit           string    `db:"credit"`
	CreatedAt        time.Time `db:"created_at"`
}

func (s *SQLiteStore) GetResolution(ctx context.Context, alertID string) (*models.Resolution, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(resolutionColumns...)
	sb.From(resolutionsTable)
	sb.Where(sb.Equal("alert_id", alertID))

	query, args := sb.Build()
	var row resolutionRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get resolution for alert %s", alertID)
	}

	res := &models.Resolution{
		ID:      row.ID,
		AlertID: row.AlertID,
		Action:  models.ResolutionAction(row.Action),
		Actor: models.Actor{
			ID:   row.ActorID,
			Name: row.ActorName,
			Role: models.UserRole(row.ActorRole),
		},
		Notes:            row.Notes,
		LeadAID:          row.LeadAID,
		LeadBID:          row.LeadBID,
		CreditAssignedTo: row.CreditAssignedTo,
		CanonicalLeadID:  row.CanonicalLeadID,
		DuplicateLeadID:  row.DuplicateLeadID,
		CreatedAt:        row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.Credit), &res.Credit); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode credit of resolution %s", row.ID)
	}
	if len(res.Credit) == 0 {
		res.Credit = nil
	}
	return res, nil
}

func (s *SQLiteStore) Status(ctx context.Context) (*models.DatabaseStatus, error) {
	status := &models.DatabaseStatus{
		Driver:      "sqlite",
		Collections: make(map[string]int64),
	}
	for _, table := range []string{leadsTable, alertsTable, resolutionsTable} {
		var count int64
		if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		status.Collections[table] = count
	}
	return status, nil
}

func resolvedAtUTC(t *time.Time) any {
	if t == nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

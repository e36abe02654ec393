package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver (cgo)
	_ "modernc.org/sqlite"          // "sqlite" driver (pure Go)

	"mercator-hq/warden/pkg/compliance"
	"mercator-hq/warden/pkg/config"
)

// Supported database/sql driver names.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// defaultLimit caps history queries that do not set a limit.
const defaultLimit = 100

// SQLite implements compliance.Store on a SQLite database file through either
// the mattn (cgo) or the modernc (pure Go) driver.
type SQLite struct {
	db     *sql.DB
	config *config.StorageConfig
	logger *slog.Logger
}

var _ compliance.Store = (*SQLite)(nil)

// NewSQLite opens the database described by cfg and creates the schema.
func NewSQLite(cfg *config.StorageConfig, logger *slog.Logger) (*SQLite, error) {
	if cfg == nil {
		cfg = &config.NewDefault().Storage
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.sqlite")

	db, err := sql.Open(cfg.Driver, dsn(cfg))
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLite{db: db, config: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// dsn puts the per-connection pragmas into the connection string so every
// pooled connection gets them. The two drivers spell them differently.
func dsn(cfg *config.StorageConfig) string {
	busy := cfg.BusyTimeout.Milliseconds()
	if cfg.Driver == DriverMattn {
		return fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.Path, busy)
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, busy)
}

func (s *SQLite) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return compliance.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return compliance.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion, time.Now().UnixNano()); err != nil {
		return compliance.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return compliance.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return compliance.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return compliance.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return compliance.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// ListMonitoredPolicies returns policies with monitoring enabled, ordered by id.
func (s *SQLite) ListMonitoredPolicies(ctx context.Context) ([]*compliance.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, policy_type, monitoring_enabled, current_document_ref
		 FROM policies WHERE monitoring_enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_monitored_policies", err)
	}
	defer rows.Close()

	var policies []*compliance.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_monitored_policies", err)
	}
	return policies, nil
}

// GetPolicy returns one policy or an error wrapping compliance.ErrNotFound.
func (s *SQLite) GetPolicy(ctx context.Context, id string) (*compliance.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, policy_type, monitoring_enabled, current_document_ref
		 FROM policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", id, compliance.ErrNotFound)
	}
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "get_policy", err)
	}
	return p, nil
}

// LatestVersions returns up to n versions of a policy, newest first.
func (s *SQLite) LatestVersions(ctx context.Context, policyID string, n int) ([]*compliance.PolicyVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, policy_id, content, created_at FROM policy_versions
		 WHERE policy_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, policyID, n)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "latest_versions", err)
	}
	defer rows.Close()

	var versions []*compliance.PolicyVersion
	for rows.Next() {
		var v compliance.PolicyVersion
		var created int64
		if err := rows.Scan(&v.ID, &v.PolicyID, &v.Content, &created); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_version", err)
		}
		v.CreatedAt = fromNanos(created)
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "latest_versions", err)
	}
	return versions, nil
}

// ActiveChecks returns the active check definitions for a policy type.
func (s *SQLite) ActiveChecks(ctx context.Context, policyType string) ([]*compliance.CheckDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, check_name, check_type, check_criteria, is_active, policy_type, severity
		 FROM compliance_checks WHERE policy_type = ? AND is_active = 1 ORDER BY id`, policyType)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "active_checks", err)
	}
	defer rows.Close()

	var defs []*compliance.CheckDefinition
	for rows.Next() {
		var d compliance.CheckDefinition
		var checkType string
		var criteria sql.NullString
		if err := rows.Scan(&d.ID, &d.CheckName, &checkType, &criteria, &d.IsActive, &d.PolicyType, &d.Severity); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_check", err)
		}
		d.CheckType = compliance.CheckType(checkType)
		if criteria.Valid && criteria.String != "" {
			d.CheckCriteria = json.RawMessage(criteria.String)
		}
		defs = append(defs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "active_checks", err)
	}
	return defs, nil
}

// Subscriptions returns the subscribers of a policy ordered by user id.
func (s *SQLite) Subscriptions(ctx context.Context, policyID string) ([]*compliance.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT policy_id, user_id FROM subscriptions WHERE policy_id = ? ORDER BY user_id`, policyID)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "subscriptions", err)
	}
	defer rows.Close()

	var subs []*compliance.Subscription
	for rows.Next() {
		var sub compliance.Subscription
		if err := rows.Scan(&sub.PolicyID, &sub.UserID); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_subscription", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "subscriptions", err)
	}
	return subs, nil
}

// SaveChange appends a detected change.
func (s *SQLite) SaveChange(ctx context.Context, c *compliance.Change) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_changes (id, policy_id, version_id, change_type, description, impact_level, source, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PolicyID, c.VersionID, string(c.Type), c.Description, string(c.ImpactLevel), string(c.Source), toNanos(c.DetectedAt))
	if err != nil {
		return compliance.NewStorageError("sqlite", "save_change", err)
	}
	return nil
}

// SaveCheckResult appends a check result.
func (s *SQLite) SaveCheckResult(ctx context.Context, r *compliance.CheckResult) error {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return compliance.NewStorageError("sqlite", "save_check_result", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO check_results (id, run_id, check_id, policy_id, status, details, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.CheckID, r.PolicyID, string(r.Status), string(details), toNanos(r.ExecutedAt))
	if err != nil {
		return compliance.NewStorageError("sqlite", "save_check_result", err)
	}
	return nil
}

// SaveViolation appends a violation.
func (s *SQLite) SaveViolation(ctx context.Context, v *compliance.Violation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO violations (id, run_id, policy_id, check_id, check_result_id, description, severity, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.RunID, v.PolicyID, v.CheckID, v.CheckResultID, v.Description, v.Severity, string(v.Status), toNanos(v.CreatedAt))
	if err != nil {
		return compliance.NewStorageError("sqlite", "save_violation", err)
	}
	return nil
}

// SaveNotification writes a notification.
func (s *SQLite) SaveNotification(ctx context.Context, n *compliance.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, related_type, related_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type), n.RelatedType, n.RelatedID, toNanos(n.CreatedAt))
	if err != nil {
		return compliance.NewStorageError("sqlite", "save_notification", err)
	}
	return nil
}

// UpsertPolicy inserts or replaces a policy keyed by id.
func (s *SQLite) UpsertPolicy(ctx context.Context, p *compliance.Policy) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (id, name, policy_type, monitoring_enabled, current_document_ref)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   policy_type = excluded.policy_type,
		   monitoring_enabled = excluded.monitoring_enabled,
		   current_document_ref = excluded.current_document_ref`,
		p.ID, p.Name, p.PolicyType, p.MonitoringEnabled, p.CurrentDocumentRef)
	if err != nil {
		return compliance.NewStorageError("sqlite", "upsert_policy", err)
	}
	return nil
}

// AddVersion inserts a version unless its id already exists.
func (s *SQLite) AddVersion(ctx context.Context, v *compliance.PolicyVersion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_versions (id, policy_id, content, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		v.ID, v.PolicyID, v.Content, toNanos(v.CreatedAt))
	if err != nil {
		return compliance.NewStorageError("sqlite", "add_version", err)
	}
	return nil
}

// UpsertCheck inserts or replaces a check definition keyed by id.
func (s *SQLite) UpsertCheck(ctx context.Context, d *compliance.CheckDefinition) error {
	var criteria any
	if len(d.CheckCriteria) > 0 {
		criteria = string(d.CheckCriteria)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compliance_checks (id, check_name, check_type, check_criteria, is_active, policy_type, severity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   check_name = excluded.check_name,
		   check_type = excluded.check_type,
		   check_criteria = excluded.check_criteria,
		   is_active = excluded.is_active,
		   policy_type = excluded.policy_type,
		   severity = excluded.severity`,
		d.ID, d.CheckName, string(d.CheckType), criteria, d.IsActive, d.PolicyType, d.Severity)
	if err != nil {
		return compliance.NewStorageError("sqlite", "upsert_check", err)
	}
	return nil
}

// AddSubscription records a subscription; duplicates are ignored.
func (s *SQLite) AddSubscription(ctx context.Context, sub *compliance.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (policy_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		sub.PolicyID, sub.UserID)
	if err != nil {
		return compliance.NewStorageError("sqlite", "add_subscription", err)
	}
	return nil
}

// ListCheckResults returns check results matching q, newest first.
func (s *SQLite) ListCheckResults(ctx context.Context, q *compliance.Query) ([]*compliance.CheckResult, error) {
	where, args := buildWhere(q, resultColumns)
	query := `SELECT id, run_id, check_id, policy_id, status, details, executed_at FROM check_results` +
		where + ` ORDER BY executed_at DESC, id` + limitClause(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_check_results", err)
	}
	defer rows.Close()

	results := []*compliance.CheckResult{}
	for rows.Next() {
		var r compliance.CheckResult
		var status, details string
		var executed int64
		if err := rows.Scan(&r.ID, &r.RunID, &r.CheckID, &r.PolicyID, &status, &details, &executed); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_check_result", err)
		}
		r.Status = compliance.CheckStatus(status)
		r.ExecutedAt = fromNanos(executed)
		if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_check_result", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_check_results", err)
	}
	return results, nil
}

// ListViolations returns violations matching q, newest first.
func (s *SQLite) ListViolations(ctx context.Context, q *compliance.Query) ([]*compliance.Violation, error) {
	where, args := buildWhere(q, violationColumns)
	query := `SELECT id, run_id, policy_id, check_id, check_result_id, description, severity, status, created_at
		FROM violations` + where + ` ORDER BY created_at DESC, id` + limitClause(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_violations", err)
	}
	defer rows.Close()

	violations := []*compliance.Violation{}
	for rows.Next() {
		var v compliance.Violation
		var status string
		var created int64
		if err := rows.Scan(&v.ID, &v.RunID, &v.PolicyID, &v.CheckID, &v.CheckResultID,
			&v.Description, &v.Severity, &status, &created); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_violation", err)
		}
		v.Status = compliance.ViolationStatus(status)
		v.CreatedAt = fromNanos(created)
		violations = append(violations, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_violations", err)
	}
	return violations, nil
}

// ListChanges returns detected changes matching q, newest first.
func (s *SQLite) ListChanges(ctx context.Context, q *compliance.Query) ([]*compliance.Change, error) {
	where, args := buildWhere(q, changeColumns)
	query := `SELECT id, policy_id, version_id, change_type, description, impact_level, source, detected_at
		FROM policy_changes` + where + ` ORDER BY detected_at DESC, id` + limitClause(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_changes", err)
	}
	defer rows.Close()

	changes := []*compliance.Change{}
	for rows.Next() {
		var c compliance.Change
		var changeType, impact, source string
		var detected int64
		if err := rows.Scan(&c.ID, &c.PolicyID, &c.VersionID, &changeType, &c.Description, &impact, &source, &detected); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_change", err)
		}
		c.Type = compliance.ChangeType(changeType)
		c.ImpactLevel = compliance.ImpactLevel(impact)
		c.Source = compliance.ChangeSource(source)
		c.DetectedAt = fromNanos(detected)
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_changes", err)
	}
	return changes, nil
}

// ListNotifications returns notifications matching q, newest first.
func (s *SQLite) ListNotifications(ctx context.Context, q *compliance.Query) ([]*compliance.Notification, error) {
	where, args := buildWhere(q, notificationColumns)
	query := `SELECT id, user_id, title, message, type, related_type, related_id, created_at
		FROM notifications` + where + ` ORDER BY created_at DESC, id` + limitClause(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_notifications", err)
	}
	defer rows.Close()

	notifications := []*compliance.Notification{}
	for rows.Next() {
		var n compliance.Notification
		var typ string
		var created int64
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &n.RelatedType, &n.RelatedID, &created); err != nil {
			return nil, compliance.NewStorageError("sqlite", "scan_notification", err)
		}
		n.Type = compliance.NotificationType(typ)
		n.CreatedAt = fromNanos(created)
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, compliance.NewStorageError("sqlite", "list_notifications", err)
	}
	return notifications, nil
}

// CountViolations counts violations matching q. Limit is ignored.
func (s *SQLite) CountViolations(ctx context.Context, q *compliance.Query) (int64, error) {
	where, args := buildWhere(q, violationColumns)

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations`+where, args...).Scan(&count); err != nil {
		return 0, compliance.NewStorageError("sqlite", "count_violations", err)
	}
	return count, nil
}

// PruneCheckResults deletes check results executed before the cutoff.
func (s *SQLite) PruneCheckResults(ctx context.Context, before time.Time) (int64, error) {
	return s.prune(ctx, "prune_check_results", `DELETE FROM check_results WHERE executed_at < ?`, before)
}

// PruneNotifications deletes notifications created before the cutoff.
func (s *SQLite) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	return s.prune(ctx, "prune_notifications", `DELETE FROM notifications WHERE created_at < ?`, before)
}

func (s *SQLite) prune(ctx context.Context, op, query string, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, toNanos(before))
	if err != nil {
		return 0, compliance.NewStorageError("sqlite", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, compliance.NewStorageError("sqlite", op, err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*compliance.Policy, error) {
	var p compliance.Policy
	if err := row.Scan(&p.ID, &p.Name, &p.PolicyType, &p.MonitoringEnabled, &p.CurrentDocumentRef); err != nil {
		return nil, err
	}
	return &p, nil
}

// columns maps Query fields onto a table. An empty name means the field does
// not apply to that table and is ignored.
type columns struct {
	policy, check, run, user, status string
	time                             string
}

var (
	resultColumns       = columns{policy: "policy_id", check: "check_id", run: "run_id", status: "status", time: "executed_at"}
	violationColumns    = columns{policy: "policy_id", check: "check_id", run: "run_id", status: "status", time: "created_at"}
	changeColumns       = columns{policy: "policy_id", time: "detected_at"}
	notificationColumns = columns{user: "user_id", time: "created_at"}
)

// buildWhere returns " WHERE ..." (or "") and its arguments.
func buildWhere(q *compliance.Query, cols columns) (string, []any) {
	if q == nil {
		return "", nil
	}

	var conditions []string
	var args []any
	add := func(column, value string) {
		if column != "" && value != "" {
			conditions = append(conditions, column+" = ?")
			args = append(args, value)
		}
	}

	add(cols.policy, q.PolicyID)
	add(cols.check, q.CheckID)
	add(cols.run, q.RunID)
	add(cols.user, q.UserID)
	add(cols.status, q.Status)

	if q.Since != nil {
		conditions = append(conditions, cols.time+" >= ?")
		args = append(args, toNanos(*q.Since))
	}
	if q.Until != nil {
		conditions = append(conditions, cols.time+" < ?")
		args = append(args, toNanos(*q.Until))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func limitClause(q *compliance.Query) string {
	if q == nil || q.Limit <= 0 {
		return fmt.Sprintf(" LIMIT %d", defaultLimit)
	}
	return fmt.Sprintf(" LIMIT %d", q.Limit)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/brain-access/internal/models"
)

const (
	neo4jDialTimeout  = 10 * time.Second
	neo4jReadTimeout  = 10 * time.Second
	neo4jWriteTimeout = 30 * time.Second
)

// Neo4jStore implements Store on Neo4j. Each user is a (:BrainUser) node
// carrying plan and provisioning fields; upload counters are
// (:UploadPeriod) nodes linked by [:UPLOADED_IN].
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and ensures the uniqueness constraints exist.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating Neo4j driver for %s: %w", uri, err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, neo4jDialTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(dialCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying Neo4j connection at %s: %w", uri, err)
	}

	s := &Neo4jStore{driver: driver, database: database, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	logger.Info("connected to Neo4j", "uri", uri, "database", database)
	return s, nil
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE CONSTRAINT brain_user_id IF NOT EXISTS FOR (u:BrainUser) REQUIRE u.id IS UNIQUE",
		"CREATE CONSTRAINT upload_period_key IF NOT EXISTS FOR (p:UploadPeriod) REQUIRE (p.user_id, p.start) IS UNIQUE",
	}
	for _, stmt := range stmts {
		if _, err := s.write(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensuring Neo4j schema: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	rctx, cancel := context.WithTimeout(ctx, neo4jReadTimeout)
	defer cancel()
	return neo4j.ExecuteQuery(rctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
}

func (s *Neo4jStore) write(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	wctx, cancel := context.WithTimeout(ctx, neo4jWriteTimeout)
	defer cancel()
	return neo4j.ExecuteQuery(wctx, s.driver, cypher, params, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
}

// Ping verifies connectivity.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, neo4jDialTimeout)
	defer cancel()
	return s.driver.VerifyConnectivity(pctx)
}

// ReadUserPlan returns the stored plan, or free for unknown users.
func (s *Neo4jStore) ReadUserPlan(ctx context.Context, userID string) (models.Plan, error) {
	res, err := s.read(ctx, "MATCH (u:BrainUser {id: $id}) RETURN u.plan AS plan", map[string]any{"id": userID})
	if err != nil {
		return "", fmt.Errorf("reading plan for %s: %w", userID, err)
	}
	if len(res.Records) == 0 {
		return models.PlanFree, nil
	}
	plan, isNil, err := neo4j.GetRecordValue[string](res.Records[0], "plan")
	if err != nil {
		return "", fmt.Errorf("decoding plan for %s: %w", userID, err)
	}
	if isNil || plan == "" {
		return models.PlanFree, nil
	}
	return models.Plan(plan), nil
}

// SetUserPlan records the user's plan.
func (s *Neo4jStore) SetUserPlan(ctx context.Context, userID string, plan models.Plan) error {
	if !plan.IsValid() {
		return fmt.Errorf("set plan: invalid plan %q", plan)
	}
	_, err := s.write(ctx, `MERGE (u:BrainUser {id: $id})
SET u.plan = $plan`, map[string]any{"id": userID, "plan": string(plan)})
	if err != nil {
		return fmt.Errorf("setting plan for %s: %w", userID, err)
	}
	return nil
}

// GetUser returns the user's record with the latest period's upload count.
func (s *Neo4jStore) GetUser(ctx context.Context, userID string) (*models.UserRecord, error) {
	res, err := s.read(ctx, `MATCH (u:BrainUser {id: $id})
OPTIONAL MATCH (u)-[:UPLOADED_IN]->(p:UploadPeriod)
WITH u, p ORDER BY p.start DESC
WITH u, collect(p)[0] AS latest
RETURN u {.*} AS user, latest.start AS period_start, latest.count AS uploads`, map[string]any{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("reading user %s: %w", userID, err)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	rec := res.Records[0]
	props, _, err := neo4j.GetRecordValue[map[string]any](rec, "user")
	if err != nil {
		return nil, fmt.Errorf("decoding user %s: %w", userID, err)
	}

	out := &models.UserRecord{
		UserID:      userID,
		Plan:        models.Plan(propString(props, "plan")),
		BrainAccess: brainAccessFromProps(userID, props),
	}
	if out.Plan == "" {
		out.Plan = models.PlanFree
	}
	if start, isNil, getErr := neo4j.GetRecordValue[int64](rec, "period_start"); getErr == nil && !isNil {
		out.PeriodStart = time.Unix(start, 0).UTC()
	}
	if n, isNil, getErr := neo4j.GetRecordValue[int64](rec, "uploads"); getErr == nil && !isNil {
		out.UploadsThisPeriod = int(n)
	}
	return out, nil
}

// ReadUploadCount returns the uploads consumed in the period.
func (s *Neo4jStore) ReadUploadCount(ctx context.Context, userID string, period time.Time) (int, error) {
	res, err := s.read(ctx, "MATCH (p:UploadPeriod {user_id: $id, start: $start}) RETURN p.count AS count",
		map[string]any{"id": userID, "start": period.Unix()})
	if err != nil {
		return 0, fmt.Errorf("reading upload count for %s: %w", userID, err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	n, _, err := neo4j.GetRecordValue[int64](res.Records[0], "count")
	if err != nil {
		return 0, fmt.Errorf("decoding upload count for %s: %w", userID, err)
	}
	return int(n), nil
}

// IncrementUploadCount adds one upload to the period's counter if it is
// below limit. Setting _lock takes the node's write lock before the count is
// read, so concurrent increments cannot both pass the cap.
func (s *Neo4jStore) IncrementUploadCount(ctx context.Context, userID string, period time.Time, limit int) (int, bool, error) {
	res, err := s.write(ctx, `MERGE (u:BrainUser {id: $id})
ON CREATE SET u.plan = 'free'
MERGE (p:UploadPeriod {user_id: $id, start: $start})
ON CREATE SET p.count = 0
MERGE (u)-[:UPLOADED_IN]->(p)
SET p._lock = true
WITH p, p.count AS current
WITH p, current, ($limit < 0 OR current < $limit) AS counted
SET p.count = CASE WHEN counted THEN current + 1 ELSE current END
REMOVE p._lock
RETURN p.count AS count, counted`, map[string]any{"id": userID, "start": period.Unix(), "limit": int64(limit)})
	if err != nil {
		return 0, false, fmt.Errorf("incrementing upload count for %s: %w", userID, err)
	}
	if len(res.Records) == 0 {
		return 0, false, fmt.Errorf("incrementing upload count for %s: no result", userID)
	}
	n, _, err := neo4j.GetRecordValue[int64](res.Records[0], "count")
	if err != nil {
		return 0, false, fmt.Errorf("decoding upload count for %s: %w", userID, err)
	}
	counted, _, err := neo4j.GetRecordValue[bool](res.Records[0], "counted")
	if err != nil {
		return 0, false, fmt.Errorf("decoding upload count for %s: %w", userID, err)
	}
	return int(n), counted, nil
}

// ReadBrainAccess returns the user's provisioning record.
func (s *Neo4jStore) ReadBrainAccess(ctx context.Context, userID string) (*models.BrainAccessRequest, error) {
	res, err := s.read(ctx, "MATCH (u:BrainUser {id: $id}) RETURN u {.*} AS user", map[string]any{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("reading brain access for %s: %w", userID, err)
	}
	if len(res.Records) == 0 {
		rec := models.NoBrainAccess(userID)
		return &rec, nil
	}
	props, _, err := neo4j.GetRecordValue[map[string]any](res.Records[0], "user")
	if err != nil {
		return nil, fmt.Errorf("decoding brain access for %s: %w", userID, err)
	}
	rec := brainAccessFromProps(userID, props)
	return &rec, nil
}

// WriteBrainAccess replaces the record if the stored status equals expected.
// The version bump takes the node's write lock, so the status read that
// follows sees the latest committed value. A conflict returns an error from
// the transaction function, which rolls back the bump and any node MERGE
// created.
func (s *Neo4jStore) WriteBrainAccess(ctx context.Context, userID string, expected models.BrainAccessStatus, next models.BrainAccessRequest) error {
	wctx, cancel := context.WithTimeout(ctx, neo4jWriteTimeout)
	defer cancel()

	session := s.driver.NewSession(wctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer func() { _ = session.Close(context.Background()) }()

	_, err := session.ExecuteWrite(wctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(wctx, `MERGE (u:BrainUser {id: $id})
ON CREATE SET u.plan = 'free'
SET u.ba_version = coalesce(u.ba_version, 0) + 1
RETURN coalesce(u.ba_status, 'none') AS status`, map[string]any{"id": userID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(wctx)
		if err != nil {
			return nil, err
		}
		status, _, err := neo4j.GetRecordValue[string](rec, "status")
		if err != nil {
			return nil, err
		}
		if models.BrainAccessStatus(status) != expected {
			return nil, fmt.Errorf("%w: expected %s, found %s", ErrConflict, expected, status)
		}
		_, err = tx.Run(wctx, "MATCH (u:BrainUser {id: $id}) SET u += $fields",
			map[string]any{"id": userID, "fields": brainAccessToProps(next)})
		return nil, err
	})
	if errors.Is(err, ErrConflict) {
		return err
	}
	if err != nil {
		return fmt.Errorf("writing brain access for %s: %w", userID, err)
	}
	return nil
}

// ListBrainAccess returns records in the status, oldest request first.
func (s *Neo4jStore) ListBrainAccess(ctx context.Context, status models.BrainAccessStatus, limit int) ([]models.BrainAccessRequest, error) {
	if limit <= 0 {
		limit = 1000
	}
	res, err := s.read(ctx, `MATCH (u:BrainUser)
WHERE coalesce(u.ba_status, 'none') = $status
RETURN u.id AS id, u {.*} AS user
ORDER BY coalesce(u.ba_requested_at, 0) ASC, u.id ASC
LIMIT $limit`, map[string]any{"status": string(status), "limit": int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("listing brain access in %s: %w", status, err)
	}
	out := make([]models.BrainAccessRequest, 0, len(res.Records))
	for _, rec := range res.Records {
		id, _, err := neo4j.GetRecordValue[string](rec, "id")
		if err != nil {
			return nil, fmt.Errorf("decoding user id: %w", err)
		}
		props, _, err := neo4j.GetRecordValue[map[string]any](rec, "user")
		if err != nil {
			return nil, fmt.Errorf("decoding brain access for %s: %w", id, err)
		}
		out = append(out, brainAccessFromProps(id, props))
	}
	return out, nil
}

// PruneUploadCounts detaches and deletes upload periods before the cutoff.
func (s *Neo4jStore) PruneUploadCounts(ctx context.Context, before time.Time, dryRun bool) (int, error) {
	params := map[string]any{"before": before.Unix()}
	var (
		res *neo4j.EagerResult
		err error
	)
	if dryRun {
		res, err = s.read(ctx, "MATCH (p:UploadPeriod) WHERE p.start < $before RETURN count(p) AS n", params)
	} else {
		res, err = s.write(ctx, `MATCH (p:UploadPeriod) WHERE p.start < $before
WITH collect(p) AS stale
FOREACH (p IN stale | DETACH DELETE p)
RETURN size(stale) AS n`, params)
	}
	if err != nil {
		return 0, fmt.Errorf("pruning upload periods: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	n, _, err := neo4j.GetRecordValue[int64](res.Records[0], "n")
	if err != nil {
		return 0, fmt.Errorf("decoding pruned count: %w", err)
	}
	return int(n), nil
}

// Close releases the driver.
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// --- property mapping ---

func brainAccessToProps(r models.BrainAccessRequest) map[string]any {
	return map[string]any{
		"ba_status":           string(r.Status),
		"ba_request_id":       r.RequestID,
		"ba_requested_at":     unixMillis(r.RequestedAt),
		"ba_approved_at":      unixMillis(r.ApprovedAt),
		"ba_rejected_at":      unixMillis(r.RejectedAt),
		"ba_approver_id":      r.ApproverID,
		"ba_notes":            r.Notes,
		"ba_rejection_reason": r.RejectionReason,
		"ba_requester_name":   r.Requester.Name,
		"ba_requester_email":  r.Requester.Email,
		"ba_requester_org":    r.Requester.Organization,
	}
}

func brainAccessFromProps(userID string, props map[string]any) models.BrainAccessRequest {
	status := models.BrainAccessStatus(propString(props, "ba_status"))
	if status == "" {
		status = models.BrainAccessNone
	}
	return models.BrainAccessRequest{
		UserID:    userID,
		RequestID: propString(props, "ba_request_id"),
		Status:    status,
		Requester: models.RequesterInfo{
			Name:         propString(props, "ba_requester_name"),
			Email:        propString(props, "ba_requester_email"),
			Organization: propString(props, "ba_requester_org"),
		},
		RequestedAt:     propTime(props, "ba_requested_at"),
		ApprovedAt:      propTime(props, "ba_approved_at"),
		RejectedAt:      propTime(props, "ba_rejected_at"),
		ApproverID:      propString(props, "ba_approver_id"),
		Notes:           propString(props, "ba_notes"),
		RejectionReason: propString(props, "ba_rejection_reason"),
	}
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

// propTime decodes a unix-millisecond property; 0 or absent is the zero time.
func propTime(props map[string]any, key string) time.Time {
	ms, _ := props[key].(int64)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

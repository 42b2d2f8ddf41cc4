package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lhgiang040504/telecom-anomaly-detection/internal/domain"
	"github.com/lhgiang040504/telecom-anomaly-detection/internal/graph"
)

// ErrEmptyID is returned when a batch contains a row without an identifier.
var ErrEmptyID = errors.New("row id is required")

// Repository writes CDR datasets to the graph in UNWIND batches.
//
// The graph model is:
//
//	(:User)-[:HOME_CELL]->(:CellTower)
//	(:User)-[:MEMBER_OF]->(:Community)
//	(:User)-[:CALLED {callId, ...}]->(:User)
//
// Every statement MERGEs on the natural id so batches can be replayed.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaCypher {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertTowers merges a batch of cell towers.
func (r *Repository) UpsertTowers(ctx context.Context, towers []domain.CellTower) error {
	rows := make([]any, 0, len(towers))
	for _, t := range towers {
		if t.ID == "" {
			return fmt.Errorf("upsert towers: %w", ErrEmptyID)
		}
		rows = append(rows, towerRow(t))
	}
	return r.write(ctx, "towers", upsertTowersCypher, rows)
}

// UpsertUsers merges a batch of subscribers and links each one to its home cell.
func (r *Repository) UpsertUsers(ctx context.Context, users []domain.User) error {
	rows := make([]any, 0, len(users))
	for _, u := range users {
		if u.ID == "" {
			return fmt.Errorf("upsert users: %w", ErrEmptyID)
		}
		rows = append(rows, userRow(u))
	}
	return r.write(ctx, "users", upsertUsersCypher, rows)
}

// UpsertCommunities merges a batch of communities and their MEMBER_OF edges.
// Users must already exist; unknown members are skipped by the MATCH.
func (r *Repository) UpsertCommunities(ctx context.Context, communities []domain.Community) error {
	rows := make([]any, 0, len(communities))
	for _, c := range communities {
		if c.ID == "" {
			return fmt.Errorf("upsert communities: %w", ErrEmptyID)
		}
		rows = append(rows, communityRow(c))
	}
	return r.write(ctx, "communities", upsertCommunitiesCypher, rows)
}

// UpsertCalls merges a batch of call records as CALLED relationships.
func (r *Repository) UpsertCalls(ctx context.Context, records []domain.CallRecord) error {
	rows := make([]any, 0, len(records))
	for _, c := range records {
		if c.CallID == "" {
			return fmt.Errorf("upsert calls: %w", ErrEmptyID)
		}
		rows = append(rows, callRow(c))
	}
	return r.write(ctx, "calls", upsertCallsCypher, rows)
}

// AnomalyCounts returns the number of stored calls per anomaly label.
func (r *Repository) AnomalyCounts(ctx context.Context) (map[domain.AnomalyType]int64, error) {
	res, err := r.client.ExecuteRead(ctx, anomalyCountsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("count anomalies: %w", err)
	}
	counts := make(map[domain.AnomalyType]int64, len(res.Records))
	for _, rec := range res.Records {
		counts[domain.AnomalyType(rec.String("anomalyType"))] = rec.Int("calls")
	}
	return counts, nil
}

// IntraCommunityCalls returns how many stored calls connect two members of the same community.
func (r *Repository) IntraCommunityCalls(ctx context.Context) (int64, error) {
	res, err := r.client.ExecuteRead(ctx, intraCommunityCallsCypher, nil)
	if err != nil {
		return 0, fmt.Errorf("count intra-community calls: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return res.Records[0].Int("calls"), nil
}

func (r *Repository) write(ctx context.Context, kind, cypher string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := r.client.ExecuteWrite(ctx, cypher, map[string]any{"rows": rows}); err != nil {
		return fmt.Errorf("upsert %s batch of %d: %w", kind, len(rows), err)
	}
	return nil
}

func towerRow(t domain.CellTower) map[string]any {
	return map[string]any{
		"id": t.ID,
		"props": map[string]any{
			"latitude":  t.Latitude,
			"longitude": t.Longitude,
			"areaType":  t.AreaType,
			"towerType": t.TowerType,
		},
	}
}

func userRow(u domain.User) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"homeCellId": u.HomeCellID,
		"props": map[string]any{
			"phoneNumber":  u.PhoneNumber,
			"imei":         u.IMEI,
			"imsi":         u.IMSI,
			"userType":     string(u.UserType),
			"callPattern":  string(u.CallPattern),
			"creationDate": formatTime(u.CreationDate),
		},
	}
}

func communityRow(c domain.Community) map[string]any {
	members := make([]any, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, m)
	}
	return map[string]any{
		"id":      c.ID,
		"kind":    string(c.Kind),
		"size":    c.Size(),
		"members": members,
	}
}

func callRow(c domain.CallRecord) map[string]any {
	return map[string]any{
		"callId":   c.CallID,
		"callerId": c.CallerID,
		"calleeId": c.CalleeID,
		"props": map[string]any{
			"start":           formatTime(c.Start),
			"end":             formatTime(c.End),
			"durationSeconds": c.DurationSeconds,
			"firstCellId":     c.FirstCellID,
			"lastCellId":      c.LastCellID,
			"callerImei":      c.CallerIMEI,
			"callerImsi":      c.CallerIMSI,
			"calleeImsi":      c.CalleeIMSI,
			"isAnomaly":       c.IsAnomaly,
			"anomalyType":     string(c.AnomalyType),
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var schemaCypher = []string{
	`CREATE CONSTRAINT cdr_user_id IF NOT EXISTS FOR (u:User) REQUIRE u.userId IS UNIQUE`,
	`CREATE CONSTRAINT cdr_tower_id IF NOT EXISTS FOR (t:CellTower) REQUIRE t.cellId IS UNIQUE`,
	`CREATE CONSTRAINT cdr_community_id IF NOT EXISTS FOR (c:Community) REQUIRE c.communityId IS UNIQUE`,
	`CREATE INDEX cdr_called_id IF NOT EXISTS FOR ()-[r:CALLED]-() ON (r.callId)`,
}

const upsertTowersCypher = `
UNWIND $rows AS row
MERGE (t:CellTower {cellId: row.id})
SET t += row.props
`

const upsertUsersCypher = `
UNWIND $rows AS row
MERGE (u:User {userId: row.id})
SET u += row.props
WITH u, row
MERGE (t:CellTower {cellId: row.homeCellId})
MERGE (u)-[:HOME_CELL]->(t)
`

const upsertCommunitiesCypher = `
UNWIND $rows AS row
MERGE (c:Community {communityId: row.id})
SET c.kind = row.kind, c.size = row.size
WITH c, row
UNWIND row.members AS memberId
MATCH (u:User {userId: memberId})
MERGE (u)-[:MEMBER_OF]->(c)
`

const upsertCallsCypher = `
UNWIND $rows AS row
MATCH (caller:User {userId: row.callerId})
MATCH (callee:User {userId: row.calleeId})
MERGE (caller)-[r:CALLED {callId: row.callId}]->(callee)
SET r += row.props
`

const anomalyCountsCypher = `
MATCH ()-[r:CALLED]->()
RETURN r.anomalyType AS anomalyType, count(r) AS calls
ORDER BY anomalyType
`

const intraCommunityCallsCypher = `
MATCH (a:User)-[r:CALLED]->(b:User)
WHERE EXISTS { MATCH (a)-[:MEMBER_OF]->(:Community)<-[:MEMBER_OF]-(b) }
RETURN count(r) AS calls
`

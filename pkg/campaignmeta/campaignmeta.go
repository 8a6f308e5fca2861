// Package campaignmeta adapts the relational campaign-metadata store
// boundary: campaign CRUD itself is out of scope (Non-goals — it belongs to
// whatever service owns that schema), but the note-ingest HTTP endpoints
// still need to answer one question before doing any dedup work — does
// this campaign uuid exist — so this package exposes exactly that single
// read, never a full repository.
package campaignmeta

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Checker answers whether a campaign uuid is known to the metadata store.
// Callers depend on this narrow interface rather than a concrete pool so
// tests can fake it without a real database.
type Checker interface {
	CampaignExists(ctx context.Context, campaignUUID string) (bool, error)
}

// PostgresChecker is a Checker backed by a single EXISTS query against a
// "campaigns" table this package neither creates nor migrates.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker builds a PostgresChecker over an already-connected
// pool.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// Connect dials dsn and verifies connectivity with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("campaignmeta: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("campaignmeta: ping: %w", err)
	}
	return pool, nil
}

func (c *PostgresChecker) CampaignExists(ctx context.Context, campaignUUID string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, campaignUUID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("campaignmeta: check campaign %s: %w", campaignUUID, err)
	}
	return exists, nil
}

// AllowAllChecker is a Checker that reports every campaign as existing. It
// is the fallback wired when no metadata-store DSN is configured (local
// development, or a deployment that genuinely has no relational store
// fronting this service yet) so the dedup core remains runnable without
// treating an unconfigured boundary as a hard dependency.
type AllowAllChecker struct{}

func (AllowAllChecker) CampaignExists(ctx context.Context, campaignUUID string) (bool, error) {
	slog.DebugContext(ctx, "campaignmeta: no metadata store configured, allowing campaign", "campaign_uuid", campaignUUID)
	return true, nil
}

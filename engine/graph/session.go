package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// CypherResult is the minimal result-cursor surface GraphStore needs from a
// query, narrow enough to be satisfied by a bespoke mock in tests without
// pulling in the full neo4j.ResultWithContext.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// CypherRunner executes a single Cypher statement, implemented by both a
// plain session and a managed transaction — the same seam the transaction
// callback passed to ExecuteWrite is given.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is a CypherRunner plus transaction and lifecycle control.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// opener abstracts session creation so GraphStore can be driven by a fake
// in tests without a live Neo4j instance.
type opener interface {
	OpenSession(ctx context.Context) CypherSession
}

// neo4jOpener opens real sessions against a neo4j.DriverWithContext.
type neo4jOpener struct {
	driver neo4j.DriverWithContext
}

func (o *neo4jOpener) OpenSession(ctx context.Context) CypherSession {
	return &neo4jSession{sess: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type neo4jSession struct {
	sess neo4j.SessionWithContext
}

func (s *neo4jSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}

func (s *neo4jSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(&neo4jTx{tx: tx})
	})
}

type neo4jTx struct {
	tx neo4j.ManagedTransaction
}

func (t *neo4jTx) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return t.tx.Run(ctx, cypher, params)
}

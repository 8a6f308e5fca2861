package ingest

import "testing"

func TestNextAttempt_IncrementsUntilLimit(t *testing.T) {
	dead, next := nextAttempt(NoteIngestRequest{RetryCount: 0}, 3)
	if dead {
		t.Fatal("expected a retry, not a dead letter, on the first attempt")
	}
	if next.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", next.RetryCount)
	}
}

func TestNextAttempt_DeadLettersAtLimit(t *testing.T) {
	dead, next := nextAttempt(NoteIngestRequest{RetryCount: 3}, 3)
	if !dead {
		t.Fatal("expected a dead letter once retries are exhausted")
	}
	if next.RetryCount != 3 {
		t.Fatalf("expected the dead-lettered message to keep its retry count unchanged, got %d", next.RetryCount)
	}
}

func TestNewConsumer_DefaultsMaxRetries(t *testing.T) {
	c := NewConsumer(nil, nil, "ingest.notes", "workers", "ingest.notes.dlq", 0, nil)
	if c.maxRetries != DefaultMaxRetries {
		t.Fatalf("expected default max retries %d, got %d", DefaultMaxRetries, c.maxRetries)
	}
}

func TestNewConsumer_HooksDefaultToNoOps(t *testing.T) {
	c := NewConsumer(nil, nil, "ingest.notes", "workers", "ingest.notes.dlq", 0, nil)
	// None of these should panic; a caller that never assigns hooks (e.g. a
	// test harness) must still be able to drive the consumer.
	c.OnProcessed()
	c.OnFailed()
	c.OnDeadLetter()
}

//go:build integration

package outbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"certflow/pkg/testutil/containers"
)

type WorkerSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
}

func TestWorkerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
}

func (s *WorkerSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "outbox"))
}

// newTopic returns a topic unique to the test so consumed records cannot leak
// between tests sharing the container.
func (s *WorkerSuite) newTopic() string {
	return fmt.Sprintf("certflow.audit.%s", uuid.NewString())
}

func (s *WorkerSuite) newKafkaClient(opts ...kgo.Opt) *kgo.Client {
	opts = append([]kgo.Opt{kgo.SeedBrokers(s.redpanda.Brokers...)}, opts...)
	client, err := kgo.NewClient(opts...)
	s.Require().NoError(err)
	return client
}

func (s *WorkerSuite) insertOutboxRow(ctx context.Context, aggregateID, eventType string, payload string, createdAt time.Time) uuid.UUID {
	rowID := uuid.New()
	_, err := s.pg.DB.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, 'request', $2, $3, $4, $5)`,
		rowID, aggregateID, eventType, payload, createdAt)
	s.Require().NoError(err)
	return rowID
}

func (s *WorkerSuite) TestEnsureTopicIsIdempotent() {
	ctx := context.Background()
	topic := s.newTopic()

	client := s.newKafkaClient()
	defer client.Close()

	s.Require().NoError(EnsureTopic(ctx, client, topic))
	s.Require().NoError(EnsureTopic(ctx, client, topic))
}

func (s *WorkerSuite) TestDrainPublishesAndMarksRows() {
	ctx := context.Background()
	topic := s.newTopic()

	producer := s.newKafkaClient()
	defer producer.Close()
	s.Require().NoError(EnsureTopic(ctx, producer, topic))

	requestID := uuid.NewString()
	base := time.Now().Add(-time.Minute)
	s.insertOutboxRow(ctx, requestID, "status_changed", `{"new_status":"pending"}`, base)
	s.insertOutboxRow(ctx, requestID, "status_changed", `{"new_status":"approved_pending_payment"}`, base.Add(time.Second))

	worker := NewWorker(s.pg.DB, producer, topic, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(worker.drain(ctx))

	s.Run("rows are marked published", func() {
		var unpublished int
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished)
		s.Require().NoError(err)
		s.Equal(0, unpublished)
	})

	s.Run("records arrive keyed by aggregate", func() {
		consumer := s.newKafkaClient(
			kgo.ConsumeTopics(topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		defer consumer.Close()

		records := s.consume(consumer, 2)
		s.Require().Len(records, 2)
		for _, record := range records {
			s.Equal(requestID, string(record.Key))
		}
		s.JSONEq(`{"new_status":"pending"}`, string(records[0].Value))
		s.JSONEq(`{"new_status":"approved_pending_payment"}`, string(records[1].Value))
	})

	s.Run("a second drain publishes nothing new", func() {
		s.Require().NoError(worker.drain(ctx))

		var published int
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published)
		s.Require().NoError(err)
		s.Equal(2, published)
	})
}

func (s *WorkerSuite) TestRunDrainsOnTicker() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	topic := s.newTopic()

	producer := s.newKafkaClient()
	defer producer.Close()
	s.Require().NoError(EnsureTopic(ctx, producer, topic))

	rowID := s.insertOutboxRow(ctx, uuid.NewString(), "status_changed", `{"new_status":"verified"}`, time.Now())

	worker := NewWorker(s.pg.DB, producer, topic, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT published_at FROM outbox WHERE id = $1`, rowID).Scan(&publishedAt)
		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)

	cancel()
	<-done
}

func (s *WorkerSuite) consume(client *kgo.Client, want int) []*kgo.Record {
	deadline := time.Now().Add(15 * time.Second)
	var records []*kgo.Record
	for len(records) < want && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := client.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

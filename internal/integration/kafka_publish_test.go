//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/quake-report/internal/adapter/kafka"
	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/config"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/screen"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTopic = "test-earthquakes"
	testFeed  = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"mag":7.2,"place":"88km N of Yelizovo, Russia","time":1454124312220,"url":"https://feed.test/a"}},
		{"type":"Feature","properties":{"mag":6.1,"place":"Pacific-Antarctic Ridge","time":1457021700000,"url":"https://feed.test/b"}}
	]}`
)

// publishedMessage holds a deserialized message read from the topic.
type publishedMessage struct {
	Earthquake domain.Earthquake
	Key        string
	Headers    map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var eq domain.Earthquake
	require.NoError(t, json.Unmarshal(msg.Value, &eq), "unmarshal message")

	return publishedMessage{Earthquake: eq, Key: string(msg.Key), Headers: headers}
}

func newConsumer(broker string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		Partition:   0,
		StartOffset: kafkago.FirstOffset,
	})
}

// TestScreenPublishesToKafka runs a feed load from a stub USGS server through
// the screen and reads the published records back from Kafka.
func TestScreenPublishesToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(feed.Close)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	l := loader.New(usgs.NewClient(5*time.Second, 5*time.Second, discardLogger()), discardLogger(), metrics)
	scr := screen.New(l, feed.URL, time.UTC, discardLogger(), metrics, screen.WithPublisher(writer))

	updates, unsubscribe := scr.Subscribe()
	defer unsubscribe()

	scr.Refresh()
	select {
	case snap := <-updates:
		require.Len(t, snap.Rows, 2)
	case <-ctx.Done():
		t.Fatal("timed out waiting for load")
	}
	// Close waits for the in-flight publish.
	scr.Close()

	consumer := newConsumer(broker)
	t.Cleanup(func() { _ = consumer.Close() })

	first := readPublished(ctx, t, consumer)
	assert.Equal(t, "https://feed.test/a", first.Key)
	assert.InDelta(t, 7.2, first.Earthquake.Magnitude(), 0)
	assert.Equal(t, "88km N of Yelizovo, Russia", first.Earthquake.Location())
	assert.Equal(t, "magnitude7", first.Headers["magnitude_bucket"])
	_, err := time.Parse(time.RFC3339, first.Headers["fetched_at"])
	require.NoError(t, err)

	second := readPublished(ctx, t, consumer)
	assert.Equal(t, "https://feed.test/b", second.Key)
	assert.Equal(t, int64(1457021700000), second.Earthquake.TimeMillis())
	assert.Equal(t, "magnitude6", second.Headers["magnitude_bucket"])
}

// TestWriterPublish verifies the writer alone round-trips records through Kafka.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	quakes, err := domain.ParseFeed(testFeed)
	require.NoError(t, err)

	fetchedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writer.Publish(ctx, fetchedAt, quakes))

	consumer := newConsumer(broker)
	t.Cleanup(func() { _ = consumer.Close() })

	for _, want := range quakes {
		got := readPublished(ctx, t, consumer)
		assert.Equal(t, want, got.Earthquake)
		assert.Equal(t, "2024-06-01T12:00:00Z", got.Headers["fetched_at"])
	}
}

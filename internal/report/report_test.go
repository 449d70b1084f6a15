package report

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

func sampleReport() *Report {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return New("run-1", workerpool.Config{
		QueueCount:      3,
		ThreadsPerQueue: 2,
		QueueCapacity:   10,
		RejectPolicy:    workerpool.RejectDrop,
	}, start, start.Add(95*time.Second), workerpool.Snapshot{
		Submitted:       100,
		Completed:       60,
		Rejected:        40,
		AvgWait:         1500 * time.Millisecond,
		AvgExec:         8950,
		MaxFullDuration: 40 * time.Second,
		MinFullDuration: 12 * time.Second,
		FullDurations:   []time.Duration{40 * time.Second, 12 * time.Second, 30 * time.Second},
	})
}

func TestNew(t *testing.T) {
	r := sampleReport()
	require.Equal(t, 95*time.Second, r.Elapsed)
	require.Equal(t, "drop", r.Pool.RejectPolicy)
	require.Equal(t, 3, r.Pool.QueueCount)
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, Render(&buf, sampleReport(), FormatTable))

	out := buf.String()
	for _, want := range []string{
		"QUEUE",
		"40000",
		"Average task wait time: 1500 ms",
		"Average task execution time: 8950",
		"Maximum time of a queue being full: 40000 ms",
		"Minimum time of a queue being full: 12000 ms",
		"Tasks discarded: 40/100 (40.0%)",
		"Total execution time: 95000 ms",
	} {
		require.True(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, Render(&buf, sampleReport(), FormatCSV))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "run_id,submitted"))
	require.Equal(t, "run-1,100,60,40,0.4000,1500.000,8950.000,40000.000,12000.000,95000.000", lines[1])
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, Render(&buf, sampleReport(), FormatJSON))

	var decoded map[string]interface{}
	require.Nil(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "run-1", decoded["run_id"])
	stats := decoded["stats"].(map[string]interface{})
	require.Equal(t, float64(40), stats["rejected"])
}

func TestRender_UnsupportedFormat(t *testing.T) {
	require.NotNil(t, Render(&bytes.Buffer{}, sampleReport(), "xml"))
}

func TestSealer(t *testing.T) {
	s, err := newSealer([]byte("0123456789abcdef0123456789abcdef"))
	require.Nil(t, err)

	sealed, err := s.seal([]byte("pool report"))
	require.Nil(t, err)
	require.NotEqual(t, []byte("pool report"), sealed)

	plain, err := s.open(sealed)
	require.Nil(t, err)
	require.Equal(t, "pool report", string(plain))

	other, err := newSealer([]byte("fedcba9876543210fedcba9876543210"))
	require.Nil(t, err)
	_, err = other.open(sealed)
	require.NotNil(t, err)

	_, err = s.open([]byte{1, 2})
	require.Equal(t, errCiphertextTooShort, err)

	_, err = newSealer([]byte("short"))
	require.NotNil(t, err)
}

func TestSealer_NilPassesThrough(t *testing.T) {
	s, err := newSealer(nil)
	require.Nil(t, err)
	require.Nil(t, s)

	out, err := s.seal([]byte("plain"))
	require.Nil(t, err)
	require.Equal(t, "plain", string(out))
}

func TestRedisStore_EncodeDecode(t *testing.T) {
	for _, key := range [][]byte{nil, []byte("0123456789abcdef")} {
		store, err := NewRedisStore(nil, 0, key)
		require.Nil(t, err)
		require.Equal(t, DefaultTTL, store.ttl)

		data, err := store.encode(sampleReport())
		require.Nil(t, err)
		if key != nil {
			require.False(t, bytes.Contains(data, []byte("run-1")))
		}

		r, err := store.decode(data)
		require.Nil(t, err)
		require.Equal(t, sampleReport().Stats, r.Stats)
		require.Equal(t, "run-1", r.RunID)
	}
}

func TestRedisStore_Live(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	store, err := NewRedisStore(client, time.Minute, []byte("0123456789abcdef"))
	require.Nil(t, err)

	ctx := context.Background()
	r := sampleReport()
	r.RunID = uuid.NewString()
	require.Nil(t, store.Save(ctx, r))

	loaded, err := store.Load(ctx, r.RunID)
	require.Nil(t, err)
	require.Equal(t, r.Stats, loaded.Stats)

	latest, err := store.Latest(ctx)
	require.Nil(t, err)
	require.Equal(t, r.RunID, latest.RunID)

	_, err = store.Load(ctx, uuid.NewString())
	require.Equal(t, ErrNotFound, err)
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/NamiraNet/namira-pool/internal/report"
	"github.com/NamiraNet/namira-pool/internal/workerpool"
)

func testReport() *report.Report {
	start := time.Now()
	return report.New("run-42", workerpool.Config{
		QueueCount:      3,
		ThreadsPerQueue: 2,
		QueueCapacity:   10,
		RejectPolicy:    workerpool.RejectDrop,
	}, start, start.Add(90*time.Second), workerpool.Snapshot{
		Submitted:       100,
		Completed:       75,
		Rejected:        25,
		AvgWait:         2 * time.Second,
		MaxFullDuration: 30 * time.Second,
	})
}

var _ Notifier = (*Telegram)(nil)

func TestTelegram_RenderDefault(t *testing.T) {
	tg := NewTelegram("token", "@channel", "", nil, nil)

	text, err := tg.Render(testReport())
	require.Nil(t, err)
	require.True(t, strings.Contains(text, "run-42"))
	require.True(t, strings.Contains(text, "Completed: 75/100"))
	require.True(t, strings.Contains(text, "Discarded: 25 (25.0%)"))
	require.True(t, strings.Contains(text, "Max queue full: 30000 ms"))
	require.True(t, strings.Contains(text, "Total: 90000 ms"))
}

func TestTelegram_BadTemplate(t *testing.T) {
	tg := NewTelegram("token", "@channel", "{{.RunID", nil, nil)
	require.NotNil(t, tg.Send(context.Background(), testReport()))
}

func TestTelegram_Send(t *testing.T) {
	var got telegramMessage
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tg := NewTelegram("secret", "@channel", "{{.RunID}} {{.Stats.Completed}}", server.Client(), nil)
	tg.APIBase = server.URL

	require.Nil(t, tg.Send(context.Background(), testReport()))
	require.Equal(t, "/botsecret/sendMessage", path)
	require.Equal(t, "@channel", got.ChatID)
	require.Equal(t, "run-42 75", got.Text)
	require.Equal(t, "HTML", got.ParseMode)
}

func TestTelegram_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	tg := NewTelegram("secret", "@channel", "", server.Client(), nil)
	tg.APIBase = server.URL

	err := tg.Send(context.Background(), testReport())
	require.NotNil(t, err)
	require.True(t, strings.Contains(err.Error(), "429"))
}

func TestTelegram_LimiterHonoursContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	tg := NewTelegram("secret", "@channel", "", server.Client(), limiter)
	tg.APIBase = server.URL

	require.Nil(t, tg.Send(context.Background(), testReport()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NotNil(t, tg.Send(ctx, testReport()))
	require.Equal(t, int32(1), calls.Load())
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/store"
	"github.com/roach88/mealplan/internal/verify"
)

func testReport() verify.Report {
	return verify.Report{
		JobID:      "job-1",
		OrderID:    "order-1",
		PlanID:     "plan-1",
		Actor:      verify.Party{ID: "booker-1", Name: "Bao"},
		Outcome:    verify.OutcomeMismatch,
		StartedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		DetectedAt: time.Date(2024, 3, 1, 9, 0, 2, 0, time.UTC),
		Days: []verify.DayDiff{{
			Day:  "1709510400000",
			Date: "2024-03-04",
			Rows: []verify.Row{{
				Member:   verify.Party{ID: "alice", Name: "Alice"},
				Expected: verify.EntryView{Food: verify.FoodRef{ID: "f1", Name: "Pho"}, Status: plan.StatusJoined},
				Actual:   &verify.EntryView{Status: plan.StatusEmpty},
				Fields:   []string{verify.FieldFoodID, verify.FieldStatus},
			}},
		}},
		Actions: []verify.ActionLine{},
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, NewLogSink(logger).Publish(context.Background(), testReport()))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "plan consistency alert")
	assert.Contains(t, out, "job_id=job-1")
	assert.Contains(t, out, "entry.member=Alice")
	assert.Contains(t, out, "entry.actual=empty")
}

func TestWebhookSink_PostsSummaryAndReport(t *testing.T) {
	var got webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhookSink(srv.URL).Publish(context.Background(), testReport()))
	assert.Contains(t, got.Text, "plan plan-1")
	assert.Equal(t, "job-1", got.Report.JobID)
	require.Len(t, got.Report.Days, 1)
	assert.Equal(t, "Alice", got.Report.Days[0].Rows[0].Member.Name)
}

func TestWebhookSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel_not_found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Publish(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestOutbox(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	o := NewOutbox(s)

	require.NoError(t, o.Publish(ctx, testReport()))
	require.NoError(t, o.Publish(ctx, testReport()), "duplicate publish is ignored")

	alerts, err := s.ListAlerts(ctx, "plan-1", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "mismatch", alerts[0].Outcome)

	var decoded verify.Report
	require.NoError(t, json.Unmarshal([]byte(alerts[0].Payload), &decoded))
	assert.Equal(t, testReport().Days, decoded.Days)

	require.NoError(t, o.RecordResult(ctx, verify.Result{
		JobID:      "job-1",
		OrderID:    "order-1",
		PlanID:     "plan-1",
		ActorID:    "booker-1",
		Outcome:    verify.OutcomeMismatch,
		Mismatches: 1,
		StartedAt:  testReport().StartedAt,
		FinishedAt: testReport().DetectedAt,
	}))
	records, err := s.ListVerifications(ctx, "plan-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Mismatches)
}

type sinkFunc func(context.Context, verify.Report) error

func (f sinkFunc) Publish(ctx context.Context, r verify.Report) error { return f(ctx, r) }

func TestFanout_PublishesToAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	calls := 0
	count := sinkFunc(func(context.Context, verify.Report) error { calls++; return nil })
	fail := sinkFunc(func(context.Context, verify.Report) error { calls++; return errA })

	err := Fanout{fail, count, count}.Publish(context.Background(), testReport())
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 3, calls)

	assert.NoError(t, Fanout{}.Publish(context.Background(), testReport()))
}

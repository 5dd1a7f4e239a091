package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openclimatefix/turbine-selector/internal/selection"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

// --- HELPERS ------------------------------------------------------------------------------------

type fakeStore struct {
	turbines []turbine.Descriptor
	err      error
	panics   bool
	calls    atomic.Int32
}

func (f *fakeStore) ListTurbines(context.Context) ([]turbine.Descriptor, error) {
	f.calls.Add(1)
	if f.panics {
		panic("store exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]turbine.Descriptor(nil), f.turbines...), nil
}

func (f *fakeStore) GetTurbine(_ context.Context, id int32) (turbine.Descriptor, error) {
	f.calls.Add(1)
	if f.err != nil {
		return turbine.Descriptor{}, f.err
	}
	for _, d := range f.turbines {
		if d.ID == id {
			return d, nil
		}
	}
	return turbine.Descriptor{}, turbine.Errorf(turbine.CodeNotFound, "no turbine with id %d", id)
}

func (f *fakeStore) ListEfficiencySamples(_ context.Context, id int32) ([]turbine.EfficiencySample, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.turbines {
		if d.ID == id {
			curve, err := turbine.DecodeCurve(d.RawCurve)
			if err != nil {
				return nil, nil
			}
			return turbine.SortedSamples(id, curve), nil
		}
	}
	return nil, nil
}

func catalogue() []turbine.Descriptor {
	return []turbine.Descriptor{
		{ID: 1, Name: "d1", Type: turbine.Ptr("Francis"), QMin: 0, QMax: 2, HMin: 10, HMax: 50,
			RawCurve: `[{"flow": 2, "efficiency": 90}, {"flow": 1, "efficiency": 80}]`},
		{ID: 2, Name: "d2", Type: turbine.Ptr("Kaplan"), QMin: 1, QMax: 5, HMin: 20, HMax: 60,
			RawCurve: `not json`},
		{ID: 3, Name: "d3", QMin: 1, QMax: 3, HMin: 30, HMax: 40},
	}
}

func setupServer(tb testing.TB, store *fakeStore, cfg Config) http.Handler {
	tb.Helper()
	s := NewServer(cfg, selection.NewService(store, nil))
	s.SetReady(true)
	return s.Handler()
}

func get(tb testing.TB, h http.Handler, target string) *httptest.ResponseRecorder {
	tb.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](tb testing.TB, rec *httptest.ResponseRecorder) T {
	tb.Helper()
	var v T
	require.NoError(tb, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- Tests --------------------------------------------------------------------------------------

func TestSelect(t *testing.T) {
	store := &fakeStore{turbines: catalogue()}
	h := setupServer(t, store, DefaultConfig())

	t.Run("Shared boundary matches both", func(t *testing.T) {
		rec := get(t, h, "/select?Q=2&H=30")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		res := decode[selection.Result](t, rec)
		require.Equal(t, 2.0, res.Query.Q)
		require.Nil(t, res.Query.Freq)
		ids := []int32{}
		for _, d := range res.Matched {
			ids = append(ids, d.ID)
		}
		require.Equal(t, []int32{1, 2, 3}, ids)
		require.NotNil(t, res.Best)
		require.Equal(t, int32(1), res.Best.ID)
		require.Equal(t, turbine.CurveOK, res.Best.CurveStatus)
		require.Equal(t, turbine.CurveInvalid, res.Matched[1].CurveStatus)
		require.NotEmpty(t, res.Matched[1].CurveError)
		require.Equal(t, turbine.CurveAbsent, res.Matched[2].CurveStatus)
	})

	t.Run("Freq is echoed", func(t *testing.T) {
		rec := get(t, h, "/select?Q=3&H=55&freq=50")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[selection.Result](t, rec)
		require.Len(t, res.Matched, 1)
		require.Equal(t, int32(2), res.Best.ID)
		require.Equal(t, 50.0, *res.Query.Freq)
	})

	t.Run("No match is an empty success", func(t *testing.T) {
		rec := get(t, h, "/select?Q=10&H=10")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[map[string]json.RawMessage](t, rec)
		require.JSONEq(t, `[]`, string(body["matched"]))
		require.JSONEq(t, `null`, string(body["best"]))
	})
}

func TestSelectInvalidQueryNeverReachesStore(t *testing.T) {
	store := &fakeStore{turbines: catalogue()}
	h := setupServer(t, store, DefaultConfig())

	for _, target := range []string{
		"/select",
		"/select?Q=2",
		"/select?H=30",
		"/select?Q=abc&H=30",
		"/select?Q=0&H=30",
		"/select?Q=2&H=NaN",
		"/results?Q=&H=1",
		"/charts/envelope?Q=1",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h, target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[map[string]any](t, rec)
			require.Equal(t, string(turbine.CodeInvalidQuery), body["code"])
			require.NotEmpty(t, body["error"])
			require.NotEmpty(t, body["request_id"])
			require.NotContains(t, body, "matched")
		})
	}
	require.Zero(t, store.calls.Load())
}

func TestSelectStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("dial tcp: connection refused")}
	h := setupServer(t, store, DefaultConfig())

	rec := get(t, h, "/select?Q=2&H=30")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, string(turbine.CodeStoreUnavailable), body["code"])
	require.NotContains(t, body, "matched")
	require.NotContains(t, body, "best")
	require.NotContains(t, rec.Body.String(), "connection refused", "causes stay in the logs")
	require.Equal(t, int32(1), store.calls.Load(), "no retry")
}

func TestPanicIsRecovered(t *testing.T) {
	h := setupServer(t, &fakeStore{panics: true}, DefaultConfig())
	rec := get(t, h, "/select?Q=2&H=30")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	require.Equal(t, turbine.CodeInternal, body.Code)
}

func TestPanicAfterHeadersKeepsReply(t *testing.T) {
	s := NewServer(DefaultConfig(), selection.NewService(&fakeStore{}, nil))
	h := s.panicRecoveryMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		panic("late failure")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/select", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "partial", rec.Body.String())
}

func TestUnencodableBodyIsServerError(t *testing.T) {
	store := &fakeStore{turbines: []turbine.Descriptor{
		{ID: 1, Name: "broken", QMin: math.NaN(), QMax: 2, HMin: 1, HMax: 2},
	}}
	h := setupServer(t, store, DefaultConfig())

	rec := get(t, h, "/turbines")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ErrorResponse](t, rec)
	require.Equal(t, turbine.CodeInternal, body.Code)
	require.Equal(t, rec.Header().Get("X-Request-Id"), body.RequestID)
}

func TestRequestID(t *testing.T) {
	h := setupServer(t, &fakeStore{turbines: catalogue()}, DefaultConfig())

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/select?Q=x&H=1", nil)
	req.Header.Set("X-Request-Id", id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, id, rec.Header().Get("X-Request-Id"))
	require.Equal(t, id, decode[ErrorResponse](t, rec).RequestID)

	req = httptest.NewRequest(http.MethodGet, "/turbines", nil)
	req.Header.Set("X-Request-Id", "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	_, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	require.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	cfg.RateLimitBurst = 1
	h := setupServer(t, &fakeStore{turbines: catalogue()}, cfg)

	require.Equal(t, http.StatusOK, get(t, h, "/turbines").Code)
	rec := get(t, h, "/turbines")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, turbine.CodeRateLimited, decode[ErrorResponse](t, rec).Code)

	require.Equal(t, http.StatusOK, get(t, h, "/health").Code, "system routes are not limited")
}

func TestTurbineLookups(t *testing.T) {
	h := setupServer(t, &fakeStore{turbines: catalogue()}, DefaultConfig())

	t.Run("List decodes curves", func(t *testing.T) {
		rec := get(t, h, "/turbines")
		require.Equal(t, http.StatusOK, rec.Code)
		ds := decode[[]turbine.Descriptor](t, rec)
		require.Len(t, ds, 3)
		require.Equal(t, turbine.CurveOK, ds[0].CurveStatus)
		require.Len(t, ds[0].Curve, 2)
	})

	t.Run("One", func(t *testing.T) {
		rec := get(t, h, "/turbines/2")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "d2", decode[turbine.Descriptor](t, rec).Name)
	})

	t.Run("Unknown id", func(t *testing.T) {
		rec := get(t, h, "/turbines/99")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, turbine.CodeNotFound, decode[ErrorResponse](t, rec).Code)
	})

	t.Run("Bad id", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, get(t, h, "/turbines/abc").Code)
	})

	t.Run("Wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/turbines", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestEfficiency(t *testing.T) {
	h := setupServer(t, &fakeStore{turbines: catalogue()}, DefaultConfig())

	rec := get(t, h, "/efficiency?id=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []turbine.EfficiencySample{
		{TurbineID: 1, Flow: 1, Efficiency: 80},
		{TurbineID: 1, Flow: 2, Efficiency: 90},
	}, decode[[]turbine.EfficiencySample](t, rec))

	rec = get(t, h, "/efficiency?id=3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	require.Equal(t, http.StatusBadRequest, get(t, h, "/efficiency").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/efficiency?id=1.5").Code)
}

func TestResults(t *testing.T) {
	h := setupServer(t, &fakeStore{turbines: catalogue()}, DefaultConfig())

	rec := get(t, h, "/results?Q=2&H=30&open=Kaplan&selected=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Total  int    `json:"total"`
		BestID *int32 `json:"best_id"`
		Groups []struct {
			Type    string `json:"type"`
			Open    bool   `json:"open"`
			Members []struct {
				ID     int32 `json:"id"`
				IsBest bool  `json:"is_best"`
			} `json:"members"`
		} `json:"groups"`
		Detail *struct {
			Containment []string `json:"containment"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 3, page.Total)
	require.Equal(t, int32(1), *page.BestID)
	require.Len(t, page.Groups, 3)
	require.Equal(t, "Francis", page.Groups[0].Type)
	require.True(t, page.Groups[0].Members[0].IsBest)
	require.False(t, page.Groups[0].Open)
	require.True(t, page.Groups[1].Open)
	require.Equal(t, turbine.Unclassified, page.Groups[2].Type)
	require.True(t, page.Groups[2].Open, "group of the selected turbine")
	require.NotNil(t, page.Detail)
	require.Equal(t, []string{"Q=2 within [1, 3]", "H=30 within [30, 40]"}, page.Detail.Containment)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/results?Q=2&H=30&selected=x").Code)
}

func TestCharts(t *testing.T) {
	h := setupServer(t, &fakeStore{turbines: catalogue()}, DefaultConfig())

	rec := get(t, h, "/charts/envelope?Q=2&H=30")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = get(t, h, "/charts/envelope?Q=2&H=30&id=2&format=svg")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<svg")

	require.Equal(t, http.StatusNotFound, get(t, h, "/charts/envelope?Q=2&H=30&id=42").Code)
	require.Equal(t, http.StatusBadRequest, get(t, h, "/charts/envelope?Q=2&H=30&format=gif").Code)

	rec = get(t, h, "/charts/efficiency?id=1&format=svg")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<svg")

	rec = get(t, h, "/charts/efficiency?id=3")
	require.Equal(t, http.StatusNotFound, rec.Code, "turbine without a curve")
	require.Equal(t, http.StatusNotFound, get(t, h, "/charts/efficiency?id=2").Code, "undecodable curve")
}

func TestSystemRoutes(t *testing.T) {
	s := NewServer(DefaultConfig(), selection.NewService(&fakeStore{}, nil))
	h := s.Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/health").Code)

	rec := get(t, h, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "not_ready", decode[HealthResponse](t, rec).Status)

	s.SetReady(true)
	require.Equal(t, http.StatusOK, get(t, h, "/ready").Code)

	get(t, h, "/select?Q=1&H=1")
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "turbines_http_requests_total")
}

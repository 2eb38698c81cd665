package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gmassign/internal/adapters/http/api"
	"github.com/okian/gmassign/internal/batch"
	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/eligibility"
	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	decision    assignment.Decision
	decideErr   error
	lastRequest assignment.Request
	summary     batch.Summary
	runErr      error
	invalidated int
	stats       map[string]any
}

func (m *mockDeps) Decide(_ context.Context, req assignment.Request) (assignment.Decision, error) {
	m.lastRequest = req
	return m.decision, m.decideErr
}

func (m *mockDeps) Candidates(_ context.Context, req assignment.Request) (assignment.Decision, error) {
	m.lastRequest = req
	d := m.decision
	d.SelectedGM = nil
	return d, m.decideErr
}

func (m *mockDeps) RunBatch(context.Context) (batch.Summary, error) {
	return m.summary, m.runErr
}

func (m *mockDeps) InvalidateGameMappings(context.Context) { m.invalidated++ }

func (m *mockDeps) GetStats(context.Context) (map[string]any, error) {
	return m.stats, nil
}

func newDeps() *mockDeps {
	alice := model.GameMaster{ID: "gm-a", Name: "Alice", IsActive: true, IsAvailable: true}
	bob := model.GameMaster{ID: "gm-b", Name: "Bob", IsActive: false}
	return &mockDeps{
		decision: assignment.Decision{
			SelectedGM:  &alice,
			EligibleGMs: []eligibility.Result{{GM: alice, CompetencyLevel: 2, Weight: 2, HasSpecificCompetency: true}},
			GameMatch:   gamematch.Match{GameID: "escape", GameName: "Escape", Confidence: 95},
			Trace: []eligibility.Verdict{
				{GM: alice, Eligible: true, Reason: eligibility.ReasonEligible, Result: &eligibility.Result{GM: alice, Weight: 2}},
				{GM: bob, Reason: eligibility.ReasonInactive},
			},
		},
		summary: batch.Summary{RunID: "run-1", Assigned: 1, Outcomes: []batch.Outcome{}},
		stats:   map[string]any{"pending": 3},
	}
}

func serve(deps *mockDeps, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const validEvent = `{"title":"Escape Game","date":"2026-11-02","start_time":"10:00","end_time":"11:00"}`

func TestAssignmentsHandler(t *testing.T) {
	Convey("Given an API server over a mocked engine", t, func() {
		deps := newDeps()

		Convey("When diagnosing a valid event", func() {
			rec := serve(deps, http.MethodPost, "/assignments/diagnose", validEvent)

			Convey("Then the decision and the described trace should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["selected_gm"].(map[string]any)["id"], ShouldEqual, "gm-a")
				trace := body["trace"].([]any)
				So(len(trace), ShouldEqual, 2)
				second := trace[1].(map[string]any)
				So(second["reason"], ShouldEqual, "inactive")
				So(second["detail"], ShouldEqual, "GM is inactive")
				So(deps.lastRequest.Title, ShouldEqual, "Escape Game")
				So(deps.lastRequest.StartTime, ShouldEqual, "10:00")
			})
		})

		Convey("When asking for candidates", func() {
			rec := serve(deps, http.MethodPost, "/assignments/candidates", validEvent)

			Convey("Then no GM should be selected but candidates listed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["selected_gm"], ShouldBeNil)
				So(len(body["eligible_gms"].([]any)), ShouldEqual, 1)
			})
		})

		Convey("When the body is not valid JSON or has unknown fields", func() {
			bad := serve(deps, http.MethodPost, "/assignments/diagnose", "{")
			unknown := serve(deps, http.MethodPost, "/assignments/diagnose", `{"date":"2026-11-02","start_time":"10:00","end_time":"11:00","gm":"x"}`)
			missing := serve(deps, http.MethodPost, "/assignments/diagnose", `{"title":"x","date":"2026-11-02"}`)

			Convey("Then the request should be rejected", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(unknown.Code, ShouldEqual, http.StatusBadRequest)
				So(missing.Code, ShouldEqual, http.StatusBadRequest)
				var body map[string]string
				So(json.Unmarshal(missing.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, "bad_request")
				So(body["message"], ShouldContainSubstring, "missing start_time")
			})
		})

		Convey("When the engine rejects the event", func() {
			deps.decideErr = fmt.Errorf("%w: end is not after start", assignment.ErrInvalidEvent)
			rec := serve(deps, http.MethodPost, "/assignments/diagnose", validEvent)

			Convey("Then it should be unprocessable", func() {
				So(rec.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(rec.Body.String(), ShouldContainSubstring, "invalid_event")
			})
		})

		Convey("When the engine fails otherwise", func() {
			deps.decideErr = errors.New("database is locked")
			rec := serve(deps, http.MethodPost, "/assignments/candidates", validEvent)

			Convey("Then it should be an internal error", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When triggering a batch run", func() {
			rec := serve(deps, http.MethodPost, "/assignments/run", "")

			Convey("Then the summary should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"run_id":"run-1"`)
			})

			Convey("And a failing run should surface as 500", func() {
				deps.runErr = errors.New("boom")
				So(serve(deps, http.MethodPost, "/assignments/run", "").Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When using the wrong method", func() {
			So(serve(deps, http.MethodGet, "/assignments/diagnose", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/assignments/run", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodGet, "/game-mappings/invalidate", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(deps, http.MethodPost, "/stats", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newDeps()

		Convey("Then healthz should report ok", func() {
			rec := serve(deps, http.MethodGet, "/healthz", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then metrics should be exposed in Prometheus format", func() {
			serve(deps, http.MethodGet, "/healthz", "")
			rec := serve(deps, http.MethodGet, "/metrics", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, "gmassign_engine_http_requests_total")
		})

		Convey("Then stats should be served as JSON", func() {
			rec := serve(deps, http.MethodGet, "/stats", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"pending":3`)
		})

		Convey("Then invalidation should reach the cache", func() {
			rec := serve(deps, http.MethodPost, "/game-mappings/invalidate", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(deps.invalidated, ShouldEqual, 1)
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both kind and cause should be matchable", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.WrapKind("api.op", api.ErrInternal, nil).Error(), ShouldEqual, "api.op: internal error")
		})
	})
}

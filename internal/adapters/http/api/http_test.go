package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpapi "github.com/velatorre/crossline/internal/adapters/http/api"
	service "github.com/velatorre/crossline/internal/app"
	"github.com/velatorre/crossline/internal/domain/dedupe"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeDeps implements api.Dependencies with canned responses.
type fakeDeps struct {
	acceptResult service.AcceptResult
	acceptErr    error
	statusResult service.StatusResult
	statusErr    error
	gotEvent     model.CheckpointEvent
	gotKey       string
}

func (f *fakeDeps) Accept(_ context.Context, ev model.CheckpointEvent) (service.AcceptResult, error) {
	f.gotEvent = ev
	return f.acceptResult, f.acceptErr
}

func (f *fakeDeps) Status(_ context.Context, key string) (service.StatusResult, error) {
	f.gotKey = key
	return f.statusResult, f.statusErr
}

type fakeStats struct{}

func (fakeStats) GetStats() service.Stats {
	return service.Stats{Started: true, WorkerCount: 2}
}

const validBody = `{
	"competitionId": "COMP-123",
	"participantId": "P42",
	"type": "detection",
	"rawTime": 1700000000000,
	"extraData": {"point": "Meta"}
}`

func TestWebhookEndpoint(t *testing.T) {
	Convey("Given the ingestion API router", t, func() {
		deps := &fakeDeps{
			acceptResult: service.AcceptResult{
				Status:    service.AcceptQueued,
				RequestID: "req-1",
				QueueKey:  "k1",
			},
		}
		router := httpapi.NewServer(deps, fakeStats{}).Router()

		post := func(body string, header map[string]string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/checkpoint", strings.NewReader(body))
			for k, v := range header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		Convey("When a valid checkpoint arrives", func() {
			rec := post(validBody, nil)

			Convey("Then the accept result is returned with 200", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var res service.AcceptResult
				So(json.Unmarshal(rec.Body.Bytes(), &res), ShouldBeNil)
				So(res.Status, ShouldEqual, service.AcceptQueued)
				So(res.RequestID, ShouldEqual, "req-1")
				So(res.QueueKey, ShouldEqual, "k1")
			})

			Convey("Then the event mirrors the payload with location defaulted", func() {
				So(deps.gotEvent.CompetitionID, ShouldEqual, "COMP-123")
				So(deps.gotEvent.Kind, ShouldEqual, model.KindDetection)
				So(deps.gotEvent.Point, ShouldEqual, "Meta")
				So(deps.gotEvent.Location, ShouldEqual, "Meta")
				So(deps.gotEvent.RawTimeMS, ShouldEqual, int64(1700000000000))
			})
		})

		Convey("When the payload carries an explicit provider slug", func() {
			rec := post(`{
				"competitionId": "COMP-123",
				"participantId": "P42",
				"type": "detection",
				"copernicoId": "copernico-madrid",
				"extraData": {"point": "Meta"}
			}`, nil)

			Convey("Then the slug rides into the event", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotEvent.ProviderSlug, ShouldEqual, "copernico-madrid")
			})
		})

		Convey("When both slug fields are present", func() {
			rec := post(`{
				"competitionId": "COMP-123",
				"participantId": "P42",
				"type": "detection",
				"copernicoId": "copernico-madrid",
				"providerSlug": "legacy-alias",
				"extraData": {"point": "Meta"}
			}`, nil)

			Convey("Then copernicoId wins over the alias", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotEvent.ProviderSlug, ShouldEqual, "copernico-madrid")
			})
		})

		Convey("When extraData is omitted entirely", func() {
			rec := post(`{"competitionId": "COMP-123", "participantId": "P42", "type": "detection"}`, nil)

			Convey("Then the checkpoint is still accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotEvent.Point, ShouldBeBlank)
				So(deps.gotEvent.Location, ShouldBeBlank)
			})
		})

		Convey("When the payload is not JSON", func() {
			rec := post("{not json", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When required fields are missing", func() {
			rec := post(`{"competitionId": "COMP-123", "type": "detection", "extraData": {"point": "Meta"}}`, nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the type is unknown", func() {
			rec := post(`{"competitionId": "C", "participantId": "P", "type": "deleted", "extraData": {"point": "Meta"}}`, nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is backpressured", func() {
			deps.acceptErr = service.ErrBackpressure
			rec := post(validBody, nil)
			So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
		})
	})
}

func TestWebhookAuth(t *testing.T) {
	Convey("Given a router with a shared key configured", t, func() {
		deps := &fakeDeps{acceptResult: service.AcceptResult{Status: service.AcceptQueued}}
		router := httpapi.NewServer(deps, fakeStats{}, httpapi.WithSharedKey("sekret")).Router()

		post := func(body string, header map[string]string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/checkpoint", strings.NewReader(body))
			for k, v := range header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			return rec
		}

		Convey("Then the header key authorizes the request", func() {
			rec := post(validBody, map[string]string{"X-Api-Key": "sekret"})
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then the payload key authorizes the request", func() {
			body := strings.Replace(validBody, `"competitionId"`, `"key": "sekret", "competitionId"`, 1)
			rec := post(body, nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a wrong key is rejected", func() {
			rec := post(validBody, map[string]string{"X-Api-Key": "wrong"})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then a missing key is rejected", func() {
			rec := post(validBody, nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestStatusEndpoint(t *testing.T) {
	Convey("Given the ingestion API router", t, func() {
		deps := &fakeDeps{
			statusResult: service.StatusResult{
				Entry: model.QueueEntry{Key: "k1", RequestID: "req-1", Status: model.StatusCompleted},
				Story: &model.StoryRecord{ID: "st-1", RequestID: "req-1"},
			},
		}
		router := httpapi.NewServer(deps, fakeStats{}).Router()

		get := func(path string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			return rec
		}

		Convey("When a known key is queried", func() {
			rec := get("/queue/k1")

			Convey("Then the entry and its story are returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotKey, ShouldEqual, "k1")

				var res service.StatusResult
				So(json.Unmarshal(rec.Body.Bytes(), &res), ShouldBeNil)
				So(res.Entry.Status, ShouldEqual, model.StatusCompleted)
				So(res.Story, ShouldNotBeNil)
				So(res.Story.ID, ShouldEqual, "st-1")
			})
		})

		Convey("When the key is unknown", func() {
			deps.statusErr = dedupe.ErrNotFound
			rec := get("/queue/missing")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the stats endpoint is queried", func() {
			rec := get("/stats")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the health endpoint is queried", func() {
			rec := get("/healthz")
			So(rec.Code, ShouldEqual, http.StatusOK)
		})
	})
}

package timing_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velatorre/crossline/internal/adapters/providers/timing"
	"github.com/velatorre/crossline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFetchParticipant(t *testing.T) {
	Convey("Given a timing provider server", t, func() {
		ctx := context.Background()

		Convey("When the provider answers with a valid envelope", func() {
			var gotPath, gotKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("X-Api-Key")
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{
					"result": {"code": 0},
					"data": {
						"name": "Ana", "surname": "García", "dorsal": "42",
						"rankings": {"Meta": {"order": 3, "distance": 10, "timeNet": 2462000}}
					}
				}`))
			}))
			defer srv.Close()

			c := timing.NewHTTPClient(srv.URL, timing.WithAPIKey("sekret"))
			payload, err := c.FetchParticipant(ctx, "copernico-madrid", "P42")

			Convey("Then the payload decodes with its raw document kept", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/races/copernico-madrid/participants/P42")
				So(gotKey, ShouldEqual, "sekret")
				So(payload.Name, ShouldEqual, "Ana")
				So(payload.Rankings["Meta"].Order, ShouldEqual, 3)
				So(len(payload.Raw), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the provider reports an application-level error code", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"result": {"code": 17, "message": "unknown race"}, "data": null}`))
			}))
			defer srv.Close()

			c := timing.NewHTTPClient(srv.URL)
			_, err := c.FetchParticipant(ctx, "nope", "P42")
			So(errors.Is(err, timing.ErrProvider), ShouldBeTrue)
		})

		Convey("When the provider returns a non-200 status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}))
			defer srv.Close()

			c := timing.NewHTTPClient(srv.URL)
			_, err := c.FetchParticipant(ctx, "slug", "P42")
			So(errors.Is(err, timing.ErrUnavailable), ShouldBeTrue)
		})

		Convey("When no base URL is configured", func() {
			c := timing.NewHTTPClient("")
			_, err := c.FetchParticipant(ctx, "slug", "P42")
			So(errors.Is(err, timing.ErrNotConfigured), ShouldBeTrue)
		})
	})
}

func TestFallback(t *testing.T) {
	Convey("Given the fallback participant synthesizer", t, func() {
		Convey("Then a digit-suffixed id keeps its trailing digits", func() {
			p := timing.Fallback("runner-042")
			So(p.ExternalID, ShouldEqual, "runner-042")
			So(p.Name, ShouldEqual, "Participant 042")
			So(p.Dorsal, ShouldEqual, "042")
			So(p.DataSource, ShouldEqual, model.SourceFallback)
		})

		Convey("Then an id without digits falls back to its last characters", func() {
			p := timing.Fallback("anonymous")
			So(p.Name, ShouldEqual, "Participant mous")
			So(p.Dorsal, ShouldEqual, "mous")
		})
	})
}

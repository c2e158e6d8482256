package clips_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/velatorre/crossline/internal/adapters/providers/clips"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindow(t *testing.T) {
	Convey("Given a checkpoint instant T", t, func() {
		const T = int64(1_700_000_000_000)

		Convey("Then the clip window is exactly [T-15000, T+15000]", func() {
			start, end := clips.Window(T)
			So(start, ShouldEqual, T-15000)
			So(end, ShouldEqual, T+15000)
			So(end-start, ShouldEqual, 2*clips.WindowMS)
		})
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given a clip generation server", t, func() {
		ctx := context.Background()
		const T = int64(1_700_000_000_000)

		Convey("When generation succeeds", func() {
			var gotMethod, gotPath string
			var gotBody struct {
				StreamID  string `json:"streamId"`
				StartTime int64  `json:"startTime"`
				EndTime   int64  `json:"endTime"`
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"clipUrl": "https://clips/c1.mp4", "fileName": "c1.mp4"}`))
			}))
			defer srv.Close()

			c := clips.NewHTTPClient(srv.URL)
			clip, err := c.Generate(ctx, "st-1", T)

			Convey("Then the request carries the symmetric window", func() {
				So(err, ShouldBeNil)
				So(clip.URL, ShouldEqual, "https://clips/c1.mp4")
				So(gotMethod, ShouldEqual, http.MethodPost)
				So(gotPath, ShouldEqual, "/clips")
				So(gotBody.StreamID, ShouldEqual, "st-1")
				So(gotBody.StartTime, ShouldEqual, T-15000)
				So(gotBody.EndTime, ShouldEqual, T+15000)
			})
		})

		Convey("When the response carries no clip URL", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"fileName": "c1.mp4"}`))
			}))
			defer srv.Close()

			c := clips.NewHTTPClient(srv.URL)
			_, err := c.Generate(ctx, "st-1", T)
			So(errors.Is(err, clips.ErrUnavailable), ShouldBeTrue)
		})

		Convey("When the server rejects the request", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			}))
			defer srv.Close()

			c := clips.NewHTTPClient(srv.URL)
			_, err := c.Generate(ctx, "st-1", T)
			So(errors.Is(err, clips.ErrUnavailable), ShouldBeTrue)
		})

		Convey("When no base URL is configured", func() {
			c := clips.NewHTTPClient("")
			_, err := c.Generate(ctx, "st-1", T)
			So(errors.Is(err, clips.ErrNotConfigured), ShouldBeTrue)
		})
	})
}

package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mqueue "github.com/velatorre/crossline/internal/adapters/mq/queue"
	"github.com/velatorre/crossline/internal/adapters/providers/clips"
	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/dedupe"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/domain/ranking"
	"github.com/velatorre/crossline/internal/pipeline"
	"github.com/velatorre/crossline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type fakeTiming struct {
	payload *ranking.Payload
	err     error
	gotSlug string
}

func (f *fakeTiming) FetchParticipant(_ context.Context, slug, _ string) (*ranking.Payload, error) {
	f.gotSlug = slug
	return f.payload, f.err
}

type fakeStreams struct {
	streams map[string]string
	err     error
}

func (f *fakeStreams) FetchStreams(context.Context, string) (map[string]string, error) {
	return f.streams, f.err
}

type fakeClips struct {
	mu         sync.Mutex
	clip       clips.Clip
	err        error
	gotStream  string
	gotInstant int64
	calls      int
}

func (f *fakeClips) Generate(_ context.Context, streamID string, instantMS int64) (clips.Clip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotStream = streamID
	f.gotInstant = instantMS
	f.calls++
	return f.clip, f.err
}

// failingStore trips the resolver on its first store read.
type failingStore struct {
	repository.Store
}

func (failingStore) RaceIDs(context.Context) ([]string, error) {
	return nil, errors.New("store down")
}

func seedStore() *repository.MemStore {
	s := repository.NewMemStore()
	s.AddEvent("race-madrid", "app-main", model.EventRecord{
		ID:            "evt-10k",
		Name:          "10K Nocturna",
		CompetitionID: "COMP-123",
		TimingPoints:  []string{"Salida", "5k", "Meta"},
	})
	s.SetProviderSlug("COMP-123", "copernico-madrid")
	return s
}

func location() model.EventLocation {
	return model.EventLocation{
		RaceID: "race-madrid",
		AppID:  "app-main",
		Event:  model.EventRecord{ID: "evt-10k"},
	}
}

func detection() model.CheckpointEvent {
	return model.CheckpointEvent{
		CompetitionID: "COMP-123",
		ParticipantID: "P42",
		Kind:          model.KindDetection,
		Point:         "Meta",
		Location:      "Meta",
		RawTimeMS:     1_700_000_000_000,
	}
}

func providerPayload() *ranking.Payload {
	pos := 3
	return &ranking.Payload{
		Name:    "Ana",
		Surname: "García",
		Dorsal:  "42",
		Rankings: map[string]ranking.Split{
			"Meta": {Order: 2, Distance: 10, TimeNet: 2_462_000, Pos: &pos, RawTimeMS: 1_699_999_999_000},
		},
		Times: map[string]string{"Meta": "00:41:02"},
	}
}

func enqueue(ctx context.Context, dq dedupe.Queue, key, requestID string, ev model.CheckpointEvent) mqueue.Task {
	_, err := dq.Enqueue(ctx, model.QueueEntry{
		Key:           key,
		RequestID:     requestID,
		CompetitionID: ev.CompetitionID,
		ParticipantID: ev.ParticipantID,
		Kind:          ev.Kind,
		Payload:       ev,
	})
	So(err, ShouldBeNil)
	return mqueue.Task{Key: key, RequestID: requestID, Event: ev}
}

func TestCoordinatorProcess(t *testing.T) {
	Convey("Given a seeded store and a queued detection", t, func() {
		ctx := context.Background()
		log := logger.Get()
		store := seedStore()
		dq := dedupe.NewInMemoryQueue()
		ev := detection()

		Convey("When every collaborator succeeds", func() {
			tc := &fakeTiming{payload: providerPayload()}
			sc := &fakeStreams{streams: map[string]string{"Meta": "st-1"}}
			cc := &fakeClips{clip: clips.Clip{URL: "https://clips/c1.mp4"}}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", ev)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the entry completes", func() {
				e, err := dq.Get(ctx, "k1")
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompleted)
			})

			Convey("Then the participant carries the enrichment snapshot", func() {
				p, err := store.Participant(ctx, location(), "P42")
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Ana García")
				So(p.DataSource, ShouldEqual, model.SourceProvider)
				So(p.Rankings["Meta"], ShouldEqual, 3)
				So(p.Times["Meta"], ShouldEqual, "00:41:02")
				So(p.LastCheckpoint.Point, ShouldEqual, "Meta")
			})

			Convey("Then the story finishes with its clip", func() {
				st, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(st.Type, ShouldEqual, model.StoryFinished)
				So(st.Generation.Status, ShouldEqual, model.GenCompleted)
				So(st.Generation.ClipURL, ShouldEqual, "https://clips/c1.mp4")
			})

			Convey("Then the split index links the clip at the webhook instant", func() {
				idx, ok, err := store.SplitClip(ctx, location(), "Meta")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(idx.ClipURL, ShouldEqual, "https://clips/c1.mp4")
				So(idx.SplitIndex, ShouldEqual, 2)
				So(idx.Timestamp, ShouldEqual, time.UnixMilli(ev.RawTimeMS))
			})

			Convey("Then the stored provider slug was used", func() {
				So(tc.gotSlug, ShouldEqual, "copernico-madrid")
				So(cc.gotStream, ShouldEqual, "st-1")
				So(cc.gotInstant, ShouldEqual, ev.RawTimeMS)
			})
		})

		Convey("When the webhook omits the raw time", func() {
			noTime := ev
			noTime.RawTimeMS = 0
			tc := &fakeTiming{payload: providerPayload()}
			sc := &fakeStreams{streams: map[string]string{"Meta": "st-1"}}
			cc := &fakeClips{clip: clips.Clip{URL: "https://clips/c1.mp4"}}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", noTime)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the provider's split timestamp anchors the clip", func() {
				So(cc.gotInstant, ShouldEqual, int64(1_699_999_999_000))
			})
		})

		Convey("When no event matches the competition", func() {
			unknown := ev
			unknown.CompetitionID = "COMP-999"
			c := pipeline.NewCoordinator(store, dq, &fakeTiming{}, &fakeStreams{}, &fakeClips{}, log)

			task := enqueue(ctx, dq, "k1", "req-1", unknown)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the entry terminates as completed_no_events with no story", func() {
				e, err := dq.Get(ctx, "k1")
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompletedNoEvents)

				_, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the timing provider is down", func() {
			tc := &fakeTiming{err: errors.New("provider down")}
			sc := &fakeStreams{streams: map[string]string{"Meta": "st-1"}}
			cc := &fakeClips{clip: clips.Clip{URL: "https://clips/c1.mp4"}}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", ev)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then a fallback participant is written and the story still completes", func() {
				p, err := store.Participant(ctx, location(), "P42")
				So(err, ShouldBeNil)
				So(p.DataSource, ShouldEqual, model.SourceFallback)
				So(p.Name, ShouldEqual, "Participant 42")

				st, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(st.Generation.Status, ShouldEqual, model.GenCompleted)
			})
		})

		Convey("When the checkpoint is a modification", func() {
			mod := ev
			mod.Kind = model.KindModification
			tc := &fakeTiming{payload: providerPayload()}
			cc := &fakeClips{}
			c := pipeline.NewCoordinator(store, dq, tc, &fakeStreams{}, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", mod)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the participant refreshes but no story or clip is made", func() {
				_, err := store.Participant(ctx, location(), "P42")
				So(err, ShouldBeNil)

				_, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(cc.calls, ShouldEqual, 0)
			})
		})

		Convey("When no stream covers the location", func() {
			boxes := ev
			boxes.Location = "Boxes"
			tc := &fakeTiming{payload: providerPayload()}
			sc := &fakeStreams{streams: map[string]string{"Meta": "st-1"}}
			cc := &fakeClips{}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", boxes)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the story records no_stream_available and skips generation", func() {
				st, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(st.Generation.Status, ShouldEqual, model.GenNoStream)
				So(cc.calls, ShouldEqual, 0)

				e, err := dq.Get(ctx, "k1")
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompleted)
			})
		})

		Convey("When stream discovery fails outright", func() {
			tc := &fakeTiming{payload: providerPayload()}
			sc := &fakeStreams{err: errors.New("discovery down")}
			cc := &fakeClips{}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", ev)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the run still completes with a clipless story", func() {
				st, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(st.Generation.Status, ShouldEqual, model.GenNoStream)
			})
		})

		Convey("When clip generation fails", func() {
			tc := &fakeTiming{payload: providerPayload()}
			sc := &fakeStreams{streams: map[string]string{"Meta": "st-1"}}
			cc := &fakeClips{err: errors.New("render timeout")}
			c := pipeline.NewCoordinator(store, dq, tc, sc, cc, log)

			task := enqueue(ctx, dq, "k1", "req-1", ev)
			So(c.Process(ctx, task), ShouldBeNil)

			Convey("Then the failure is recorded on the story, not the entry", func() {
				st, ok, err := store.StoryByRequestID(ctx, "req-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(st.Generation.Status, ShouldEqual, model.GenFailed)
				So(st.Generation.Error, ShouldContainSubstring, "render timeout")

				_, ok, err = store.SplitClip(ctx, location(), "Meta")
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)

				e, err := dq.Get(ctx, "k1")
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusCompleted)
			})
		})

		Convey("When location resolution itself fails", func() {
			c := pipeline.NewCoordinator(failingStore{store}, dq, &fakeTiming{}, &fakeStreams{}, &fakeClips{}, log)

			task := enqueue(ctx, dq, "k1", "req-1", ev)
			So(c.Process(ctx, task), ShouldNotBeNil)

			Convey("Then the entry is marked failed with the cause", func() {
				e, err := dq.Get(ctx, "k1")
				So(err, ShouldBeNil)
				So(e.Status, ShouldEqual, model.StatusFailed)
				So(e.Error, ShouldContainSubstring, "store down")
			})
		})
	})
}

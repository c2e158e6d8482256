package pipeline_test

import (
	"context"
	"testing"

	"github.com/velatorre/crossline/internal/adapters/repository"
	"github.com/velatorre/crossline/internal/domain/model"
	"github.com/velatorre/crossline/internal/pipeline"
	"github.com/velatorre/crossline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolveByCompetition(t *testing.T) {
	Convey("Given a catalog with events carrying scattered identifiers", t, func() {
		ctx := context.Background()
		r := pipeline.NewResolver(func() *repository.MemStore {
			s := repository.NewMemStore()
			s.AddEvent("race-madrid", "app-main", model.EventRecord{ID: "evt-a", CompetitionID: "COMP-1"})
			s.AddEvent("race-madrid", "app-main", model.EventRecord{ID: "evt-b", RaceID: "COMP-2"})
			s.AddEvent("race-madrid", "app-main", model.EventRecord{ID: "evt-c", ExternalID: "COMP-3"})
			s.AddEvent("race-valencia", "app-main", model.EventRecord{ID: "evt-d"})
			return s
		}(), logger.Get())

		Convey("Then each identifier field matches independently", func() {
			for _, id := range []string{"COMP-1", "COMP-2", "COMP-3", "evt-a"} {
				locs, err := r.ResolveByCompetition(ctx, id)
				So(err, ShouldBeNil)
				So(locs, ShouldHaveLength, 1)
			}
		})

		Convey("Then the tenant race path id matches every event under it", func() {
			locs, err := r.ResolveByCompetition(ctx, "race-madrid")
			So(err, ShouldBeNil)
			So(locs, ShouldHaveLength, 3)
		})

		Convey("Then an empty competition id matches nothing", func() {
			locs, err := r.ResolveByCompetition(ctx, "")
			So(err, ShouldBeNil)
			So(locs, ShouldBeEmpty)
		})

		Convey("Then an unknown id matches nothing", func() {
			locs, err := r.ResolveByCompetition(ctx, "COMP-404")
			So(err, ShouldBeNil)
			So(locs, ShouldBeEmpty)
		})
	})

	Convey("Given a competition mirrored across apps", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()
		s.AddEvent("race-madrid", "app-main", model.EventRecord{ID: "evt-a", CompetitionID: "COMP-1"})
		s.AddEvent("race-madrid", "app-alt", model.EventRecord{ID: "evt-a", CompetitionID: "COMP-1"})
		r := pipeline.NewResolver(s, logger.Get())

		Convey("Then both locations are returned", func() {
			locs, err := r.ResolveByCompetition(ctx, "COMP-1")
			So(err, ShouldBeNil)
			So(locs, ShouldHaveLength, 2)
			So(locs[0].AppID, ShouldNotEqual, locs[1].AppID)
		})
	})
}

func TestResolveByName(t *testing.T) {
	Convey("Given a catalog with accented event names", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()
		s.AddEvent("race-madrid", "app-main", model.EventRecord{
			ID: "evt-canon", Name: "Cañón Trail", CompetitionID: "COMP-1",
		})
		s.AddEvent("race-madrid", "app-main", model.EventRecord{
			ID: "evt-10k", Name: "10K Nocturna", CompetitionID: "COMP-1",
		})
		r := pipeline.NewResolver(s, logger.Get())

		Convey("Then a case-insensitive name narrows the match", func() {
			locs, err := r.ResolveByName(ctx, "COMP-1", "10k nocturna")
			So(err, ShouldBeNil)
			So(locs, ShouldHaveLength, 1)
			So(locs[0].Event.ID, ShouldEqual, "evt-10k")
		})

		Convey("Then a mojibake-corrupted name still resolves after repair", func() {
			locs, err := r.ResolveByName(ctx, "COMP-1", "CaÃ±Ã³n Trail")
			So(err, ShouldBeNil)
			So(locs, ShouldHaveLength, 1)
			So(locs[0].Event.ID, ShouldEqual, "evt-canon")
		})

		Convey("Then the event id works as a name", func() {
			locs, err := r.ResolveByName(ctx, "COMP-1", "evt-canon")
			So(err, ShouldBeNil)
			So(locs, ShouldHaveLength, 1)
		})

		Convey("Then an unknown name matches nothing", func() {
			locs, err := r.ResolveByName(ctx, "COMP-1", "Marathon")
			So(err, ShouldBeNil)
			So(locs, ShouldBeEmpty)
		})
	})
}

package dedupe_test

import (
	"testing"

	"github.com/velatorre/crossline/internal/domain/dedupe"
	"github.com/velatorre/crossline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	Convey("Given the key component normalizer", t, func() {
		Convey("Then casing and whitespace collapse to one form", func() {
			So(dedupe.Normalize("Meta Norte"), ShouldEqual, "METANORTE")
			So(dedupe.Normalize("  meta   norte "), ShouldEqual, "METANORTE")
			So(dedupe.Normalize("META-NORTE"), ShouldEqual, "METANORTE")
		})

		Convey("Then digits survive", func() {
			So(dedupe.Normalize("5k"), ShouldEqual, "5K")
		})

		Convey("Then an empty component becomes the NA placeholder", func() {
			So(dedupe.Normalize(""), ShouldEqual, "NA")
			So(dedupe.Normalize(" -- "), ShouldEqual, "NA")
		})
	})
}

func TestKey(t *testing.T) {
	Convey("Given the dedup key builder", t, func() {
		Convey("Then payloads differing only in casing and spacing collide", func() {
			a := dedupe.Key("COMP-1", "P 42", model.KindDetection, "Meta", "meta norte")
			b := dedupe.Key("comp-1", "p42", model.KindDetection, " META ", "Meta Norte")
			So(a, ShouldEqual, b)
		})

		Convey("Then distinct component tuples never collide", func() {
			base := dedupe.Key("COMP-1", "P42", model.KindDetection, "Meta", "Meta")
			So(dedupe.Key("COMP-2", "P42", model.KindDetection, "Meta", "Meta"), ShouldNotEqual, base)
			So(dedupe.Key("COMP-1", "P43", model.KindDetection, "Meta", "Meta"), ShouldNotEqual, base)
			So(dedupe.Key("COMP-1", "P42", model.KindModification, "Meta", "Meta"), ShouldNotEqual, base)
			So(dedupe.Key("COMP-1", "P42", model.KindDetection, "5k", "Meta"), ShouldNotEqual, base)
		})

		Convey("Then missing optional components still produce a stable key", func() {
			a := dedupe.Key("COMP-1", "P42", model.KindDetection, "Meta", "")
			b := dedupe.Key("COMP-1", "P42", model.KindDetection, "Meta", "")
			So(a, ShouldEqual, b)
		})
	})
}

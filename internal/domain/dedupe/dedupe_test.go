package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/gmassign/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemory()

		Convey("When a key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "act-1/gm-a")

			Convey("Then it should be reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Len(), ShouldEqual, 1)
			})

			Convey("And recording it again should report it as seen", func() {
				So(d.SeenAndRecord(ctx, "act-1/gm-a"), ShouldBeTrue)
				So(d.Len(), ShouldEqual, 1)
			})

			Convey("And a different GM for the same activity is a new key", func() {
				So(d.SeenAndRecord(ctx, "act-1/gm-b"), ShouldBeFalse)
			})
		})

		Convey("When a key is forgotten", func() {
			d.SeenAndRecord(ctx, "act-1/gm-a")
			d.Forget(ctx, "act-1/gm-a")
			d.Forget(ctx, "never-recorded")

			Convey("Then it can be recorded again", func() {
				So(d.Len(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "act-1/gm-a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a deduper bounded to two keys", t, func() {
		d := dedupe.NewInMemory(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a")
		d.SeenAndRecord(ctx, "b")
		d.SeenAndRecord(ctx, "c")

		Convey("Then the oldest key should be evicted", func() {
			So(d.Len(), ShouldEqual, 2)
			So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemory(dedupe.WithMaxSize(0))
		for i := range 100 {
			d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i))
		}

		Convey("Then nothing should be evicted", func() {
			So(d.Len(), ShouldEqual, 100)
			So(d.SeenAndRecord(ctx, "k-0"), ShouldBeTrue)
		})
	})

	Convey("Given concurrent writers racing on the same key", t, func() {
		d := dedupe.NewInMemory()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, "act-9/gm-z") {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one should win", func() {
			So(fresh, ShouldEqual, 1)
		})
	})
}

package gamematch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func mapping(pattern, id, name string) model.GameMapping {
	return model.GameMapping{Pattern: pattern, GameID: id, GameName: name, AverageDuration: 60, IsActive: true}
}

func TestNormalize(t *testing.T) {
	Convey("Given titles with accents and punctuation", t, func() {
		So(gamematch.Normalize("  L'Évasion  du Château!! "), ShouldEqual, "l evasion du chateau")
		So(gamematch.Normalize("Murder---Party 2"), ShouldEqual, "murder party 2")
		So(gamematch.Normalize("???"), ShouldEqual, "")
	})
}

func TestBest(t *testing.T) {
	Convey("Given a catalog of game patterns", t, func() {
		catalog := []model.GameMapping{
			mapping("Escape", "g-escape", "Escape Game"),
			mapping("Murder Party", "g-murder", "Murder Party"),
			mapping("Escape du Château", "g-chateau", "Le Château"),
		}

		Convey("When the title is empty", func() {
			m := gamematch.Best("", catalog)

			Convey("Then no game should be identified", func() {
				So(m.Found(), ShouldBeFalse)
				So(m.Confidence, ShouldEqual, 0)
			})
		})

		Convey("When a pattern normalizes to exactly the title", func() {
			m := gamematch.Best("ESCAPE DU CHATEAU", catalog)

			Convey("Then it should win with full confidence regardless of order", func() {
				So(m.GameID, ShouldEqual, "g-chateau")
				So(m.Confidence, ShouldEqual, 100)
			})

			Convey("And reversing the catalog should not change the winner", func() {
				reversed := []model.GameMapping{catalog[2], catalog[1], catalog[0]}
				So(gamematch.Best("Escape du château", reversed).GameID, ShouldEqual, "g-chateau")
			})
		})

		Convey("When the title contains a pattern", func() {
			m := gamematch.Best("Soirée Murder Party entreprise", catalog)

			Convey("Then the containing match should score 95", func() {
				So(m.GameID, ShouldEqual, "g-murder")
				So(m.Confidence, ShouldEqual, 95)
			})
		})

		Convey("When the pattern contains the title", func() {
			m := gamematch.Best("murder", []model.GameMapping{mapping("Murder Party Deluxe", "g-md", "Deluxe")})

			Convey("Then the title variant should be matched inside the pattern", func() {
				So(m.GameID, ShouldEqual, "g-md")
				So(m.Confidence, ShouldBeGreaterThanOrEqualTo, 90)
			})
		})

		Convey("When only some words overlap", func() {
			m := gamematch.Best("quiz musical", []model.GameMapping{mapping("blind test musical geant", "g-blind", "Blind Test")})

			Convey("Then the score should be proportional and capped at 80", func() {
				So(m.GameID, ShouldEqual, "g-blind")
				So(m.Confidence, ShouldBeGreaterThan, 0)
				So(m.Confidence, ShouldBeLessThanOrEqualTo, 80)
			})
		})

		Convey("When nothing matches", func() {
			m := gamematch.Best("Anniversaire", catalog)

			Convey("Then no game should be identified", func() {
				So(m.Found(), ShouldBeFalse)
				So(m.Confidence, ShouldEqual, 0)
			})
		})

		Convey("When resolving the same title twice", func() {
			Convey("Then the result should be identical", func() {
				So(gamematch.Best("Murder Party du soir", catalog), ShouldResemble, gamematch.Best("Murder Party du soir", catalog))
			})
		})
	})
}

type countingCatalog struct {
	mu       sync.Mutex
	mappings []model.GameMapping
	loads    int
	err      error
}

func (c *countingCatalog) ActiveGameMappings(context.Context) ([]model.GameMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.err != nil {
		return nil, c.err
	}
	return append([]model.GameMapping(nil), c.mappings...), nil
}

func (c *countingCatalog) set(m ...model.GameMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mappings = m
}

func TestResolverCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a resolver with a controllable clock", t, func() {
		now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
		catalog := &countingCatalog{mappings: []model.GameMapping{mapping("Escape", "g-1", "Escape")}}
		r := gamematch.NewResolver(catalog,
			gamematch.WithTTL(5*time.Minute),
			gamematch.WithClock(func() time.Time { return now }),
		)

		first, err := r.Resolve(ctx, "Escape")
		So(err, ShouldBeNil)
		So(first.GameID, ShouldEqual, "g-1")

		catalog.set(mapping("Escape", "g-2", "Escape v2"))

		Convey("When resolving again within the TTL", func() {
			again, err := r.Resolve(ctx, "escape")

			Convey("Then the cached result should be served", func() {
				So(err, ShouldBeNil)
				So(again.GameID, ShouldEqual, "g-1")
				So(catalog.loads, ShouldEqual, 1)
			})
		})

		Convey("When the cache is invalidated", func() {
			r.Invalidate()
			fresh, err := r.Resolve(ctx, "Escape")

			Convey("Then the catalog should be reloaded", func() {
				So(err, ShouldBeNil)
				So(fresh.GameID, ShouldEqual, "g-2")
				So(catalog.loads, ShouldEqual, 2)
			})
		})

		Convey("When the TTL elapses", func() {
			now = now.Add(5 * time.Minute)
			fresh, err := r.Resolve(ctx, "Escape")

			Convey("Then the catalog should be reloaded", func() {
				So(err, ShouldBeNil)
				So(fresh.GameID, ShouldEqual, "g-2")
				So(catalog.loads, ShouldEqual, 2)
			})
		})

		Convey("When an empty title is resolved", func() {
			m, err := r.Resolve(ctx, "  ")

			Convey("Then it should short-circuit without touching the catalog", func() {
				So(err, ShouldBeNil)
				So(m.Found(), ShouldBeFalse)
				So(catalog.loads, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a failing catalog", t, func() {
		catalog := &countingCatalog{err: errors.New("db down")}
		r := gamematch.NewResolver(catalog)

		Convey("Then Resolve should surface the error", func() {
			_, err := r.Resolve(ctx, "Escape")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "db down")
		})
	})

	Convey("Given a static catalog with an inactive entry", t, func() {
		inactive := mapping("Escape", "g-old", "Old")
		inactive.IsActive = false
		r := gamematch.NewResolver(gamematch.StaticCatalog{inactive, mapping("Escape room", "g-new", "New")})

		Convey("Then only active mappings should be considered", func() {
			m, err := r.Resolve(ctx, "Escape")
			So(err, ShouldBeNil)
			So(m.GameID, ShouldEqual, "g-new")
		})
	})
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/gmassign/internal/domain/model"
)

const fixtureTemplate = `
game_masters:
  - id: gm-a
    name: Alice
    email: alice@example.com
    is_active: true
    is_available: true
  - id: gm-b
    name: Bob
    is_active: true
    is_available: false
games:
  - id: escape
    name: Escape Game
    average_duration: 60
    minimum_break_minutes: 15
game_mappings:
  - pattern: escape game
    game_id: escape
    game_name: Escape Game
    average_duration: 60
    is_active: true
availabilities:
  - gm_id: gm-a
    date: "%[1]s"
    time_slots: [toute-la-journee]
  - gm_id: gm-b
    date: "%[1]s"
    time_slots: [toute-la-journee]
competencies:
  - gm_id: gm-a
    game_id: escape
    level: 4
activities:
  - id: act-1
    title: Escape Game - Team Acme
    date: "%[1]s"
    start_time: "10:00"
    end_time: "11:00"
`

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeFixture(t *testing.T) {
	convey.Convey("Given a YAML fixture", t, func() {
		date := "2026-11-02"
		fx, err := DecodeFixture(strings.NewReader(fmt.Sprintf(fixtureTemplate, date)))

		convey.Convey("Then every section should be decoded", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(fx.GameMasters), convey.ShouldEqual, 2)
			convey.So(fx.GameMasters[1].IsAvailable, convey.ShouldBeFalse)
			convey.So(*fx.Games[0].MinimumBreakMinutes, convey.ShouldEqual, 15)
			convey.So(fx.Availabilities[0].TimeSlots, convey.ShouldResemble, []string{model.SlotAllDay})
			convey.So(fx.Competencies[0].Level, convey.ShouldEqual, 4)
			convey.So(fx.GameMappings[0].IsActive, convey.ShouldBeTrue)
		})

		convey.Convey("Then activities without a status should default to pending", func() {
			convey.So(fx.Activities[0].Status, convey.ShouldEqual, model.StatusPending)
		})
	})

	convey.Convey("Given a fixture with an unknown key", t, func() {
		_, err := DecodeFixture(strings.NewReader("game_masterz: []\n"))

		convey.Convey("Then decoding should fail", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a fixture with an activity missing its id", t, func() {
		_, err := DecodeFixture(strings.NewReader("activities:\n  - title: Escape\n    date: \"2026-11-02\"\n    start_time: \"10:00\"\n    end_time: \"11:00\"\n"))

		convey.Convey("Then decoding should fail", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "has no id")
		})
	})

	convey.Convey("Given an empty fixture", t, func() {
		fx, err := DecodeFixture(strings.NewReader(""))

		convey.Convey("Then it should decode to nothing", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(fx.Activities), convey.ShouldEqual, 0)
		})
	})
}

func TestCommands(t *testing.T) {
	convey.Convey("Given a seeded database file", t, func() {
		dir := t.TempDir()
		db := filepath.Join(dir, "gmassign.db")
		fixture := filepath.Join(dir, "fixture.yaml")
		date := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
		convey.So(os.WriteFile(fixture, []byte(fmt.Sprintf(fixtureTemplate, date)), 0o600), convey.ShouldBeNil)

		out, err := execute("seed", "--database", db, fixture)
		convey.So(err, convey.ShouldBeNil)
		convey.So(out, convey.ShouldContainSubstring, "seeded 2 game masters")

		convey.Convey("When diagnosing an event", func() {
			out, err := execute("diagnose", "--database", db,
				"--title", "Escape Game", "--date", date, "--start", "14:00", "--end", "15:00")

			convey.Convey("Then the trace should explain every GM", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "game: Escape Game (escape, confidence 100)")
				convey.So(out, convey.ShouldContainSubstring, "GM is marked unavailable")
				convey.So(out, convey.ShouldContainSubstring, "selected: gm-a (Alice)")
			})
		})

		convey.Convey("When listing candidates only", func() {
			out, err := execute("diagnose", "--database", db, "--candidates",
				"--date", date, "--start", "14:00", "--end", "15:00")

			convey.Convey("Then no GM should be drawn", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "game: none identified")
				convey.So(out, convey.ShouldContainSubstring, "candidates: 1")
			})
		})

		convey.Convey("When diagnosing with a reversed window", func() {
			_, err := execute("diagnose", "--database", db, "--date", date, "--start", "15:00", "--end", "14:00")

			convey.Convey("Then the event should be rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "invalid event")
			})
		})

		convey.Convey("When running the batch", func() {
			out, err := execute("batch", "--database", db)

			convey.Convey("Then the summary should report the assignment", func() {
				convey.So(err, convey.ShouldBeNil)
				var sum struct {
					Assigned int `json:"assigned"`
					Outcomes []struct {
						ActivityID string `json:"activity_id"`
						GMID       string `json:"gm_id"`
					} `json:"outcomes"`
				}
				convey.So(json.Unmarshal([]byte(out), &sum), convey.ShouldBeNil)
				convey.So(sum.Assigned, convey.ShouldEqual, 1)
				convey.So(sum.Outcomes[0].ActivityID, convey.ShouldEqual, "act-1")
				convey.So(sum.Outcomes[0].GMID, convey.ShouldEqual, "gm-a")
			})

			convey.Convey("And the assignment should be visible to diagnose", func() {
				out, err := execute("diagnose", "--database", db, "--candidates",
					"--date", date, "--start", "11:05", "--end", "12:00")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "scheduling conflict")
			})
		})
	})

	convey.Convey("Given a missing required flag", t, func() {
		_, err := execute("diagnose", "--database", ":memory:", "--date", "2026-11-02")

		convey.Convey("Then the command should fail", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})

	convey.Convey("Given a config file that does not exist", t, func() {
		_, err := execute("batch", "--config", filepath.Join(t.TempDir(), "missing.yaml"))

		convey.Convey("Then configuration loading should fail", func() {
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

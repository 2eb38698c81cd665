package assignment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/gmassign/internal/domain/assignment"
	"github.com/okian/gmassign/internal/domain/eligibility"
	"github.com/okian/gmassign/internal/domain/gamematch"
	"github.com/okian/gmassign/internal/domain/model"
	"github.com/okian/gmassign/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

const day = "2026-11-02"

type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (gamematch.Match, error) {
	return gamematch.Match{}, errors.New("catalog offline")
}

func gm(id string) model.GameMaster {
	return model.GameMaster{ID: id, Name: id, IsActive: true, IsAvailable: true}
}

func snapshot() assignment.Snapshot {
	ten := 10
	return assignment.Snapshot{
		GameMasters: []model.GameMaster{gm("gm-a"), gm("gm-b"), gm("gm-c")},
		Availabilities: []model.Availability{
			{GMID: "gm-a", Date: day, TimeSlots: []string{model.SlotAllDay}},
			{GMID: "gm-b", Date: day, TimeSlots: []string{"09:00-18:00"}},
			{GMID: "gm-c", Date: day, TimeSlots: []string{model.SlotUnavailableDay, model.SlotAllDay}},
		},
		Competencies: []model.Competency{
			{GMID: "gm-a", GameID: "escape", Level: 1},
			{GMID: "gm-b", GameID: "escape", Level: 3},
		},
		Games: []model.Game{{ID: "quiz", Name: "Quiz", MinimumBreakMinutes: &ten}},
	}
}

func resolver() *gamematch.Resolver {
	return gamematch.NewResolver(gamematch.StaticCatalog{
		{Pattern: "Escape Game", GameID: "escape", GameName: "Escape Game", AverageDuration: 60, IsActive: true},
		{Pattern: "Quiz", GameID: "quiz", GameName: "Quiz", AverageDuration: 45, IsActive: true},
	})
}

func request(title, start, end string) assignment.Request {
	return assignment.Request{Title: title, Date: day, StartTime: start, EndTime: end}
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	Convey("Given a roster where two GMs know the game", t, func() {
		snap := snapshot()

		Convey("When the draw lands in the first GM's share", func() {
			o := assignment.New(resolver(), assignment.WithSource(fixed(0.1)), assignment.WithParallelism(2))
			d, err := o.Decide(ctx, request("Escape Game team building", "10:00", "11:00"), snap)

			Convey("Then the decision should carry the winner and the full trace", func() {
				So(err, ShouldBeNil)
				So(d.Assigned(), ShouldBeTrue)
				So(d.SelectedGM.ID, ShouldEqual, "gm-a")
				So(d.GameMatch.GameID, ShouldEqual, "escape")
				So(len(d.EligibleGMs), ShouldEqual, 2)
				So(len(d.Trace), ShouldEqual, 3)
				So(d.Trace[2].Reason, ShouldEqual, eligibility.ReasonSlotMismatch)
				So(d.FailureReason, ShouldBeEmpty)
			})
		})

		Convey("When the draw lands in the heavier GM's share", func() {
			o := assignment.New(resolver(), assignment.WithSource(fixed(0.9)))
			d, err := o.Decide(ctx, request("Escape Game", "10:00", "11:00"), snap)

			Convey("Then the heavier GM should be selected", func() {
				So(err, ShouldBeNil)
				So(d.SelectedGM.ID, ShouldEqual, "gm-b")
			})
		})

		Convey("When the trace order is inspected with high parallelism", func() {
			o := assignment.New(resolver(), assignment.WithParallelism(8))
			d, err := o.Candidates(ctx, request("Escape Game", "10:00", "11:00"), snap)

			Convey("Then it should follow roster order", func() {
				So(err, ShouldBeNil)
				So(d.Trace[0].GM.ID, ShouldEqual, "gm-a")
				So(d.Trace[1].GM.ID, ShouldEqual, "gm-b")
				So(d.Trace[2].GM.ID, ShouldEqual, "gm-c")
				So(d.SelectedGM, ShouldBeNil)
				So(len(d.EligibleGMs), ShouldEqual, 2)
			})
		})

		Convey("When no game is identified", func() {
			o := assignment.New(resolver(), assignment.WithSource(fixed(0.1)))
			d, err := o.Decide(ctx, request("Anniversaire", "10:00", "11:00"), snap)

			Convey("Then every available GM should be eligible with weight one", func() {
				So(err, ShouldBeNil)
				So(d.GameMatch.Found(), ShouldBeFalse)
				So(len(d.EligibleGMs), ShouldEqual, 2)
				for _, r := range d.EligibleGMs {
					So(r.Weight, ShouldEqual, 1)
					So(r.HasSpecificCompetency, ShouldBeFalse)
				}
			})
		})

		Convey("When the game is unknown to everyone", func() {
			o := assignment.New(resolver())
			d, err := o.Decide(ctx, request("Quiz", "10:00", "11:00"), snap)

			Convey("Then nobody is selected and the reason is reported", func() {
				So(err, ShouldBeNil)
				So(d.Assigned(), ShouldBeFalse)
				So(d.EligibleGMs, ShouldBeEmpty)
				So(d.FailureReason, ShouldContainSubstring, "2 no competency for the game")
				So(d.FailureReason, ShouldContainSubstring, "1 declared slots do not cover the event")
			})
		})

		Convey("When the roster is empty", func() {
			o := assignment.New(resolver())
			d, err := o.Decide(ctx, request("Escape Game", "10:00", "11:00"), assignment.Snapshot{})

			Convey("Then the decision should be empty but valid", func() {
				So(err, ShouldBeNil)
				So(d.Assigned(), ShouldBeFalse)
				So(d.FailureReason, ShouldEqual, "no game masters in roster")
			})
		})
	})

	Convey("Given a game with its own minimum break", t, func() {
		snap := snapshot()
		snap.Competencies = append(snap.Competencies, model.Competency{GMID: "gm-b", GameID: "quiz", Level: 2})
		snap.Activities = []model.Activity{{
			ID: "done", Title: "Escape", Date: day, StartTime: "10:00", EndTime: "11:00",
			AssignedGMID: "gm-b", Status: model.StatusAssigned,
		}}
		o := assignment.New(resolver(), assignment.WithSource(fixed(0.5)))

		Convey("When a quiz starts 15 minutes after the GM's last event", func() {
			d, err := o.Decide(ctx, request("Quiz", "11:15", "12:00"), snap)

			Convey("Then the game's 10 minute break should apply", func() {
				So(err, ShouldBeNil)
				So(d.SelectedGM.ID, ShouldEqual, "gm-b")
			})
		})

		Convey("When an escape game starts 15 minutes after", func() {
			d, err := o.Decide(ctx, request("Escape Game", "11:15", "12:00"), snap)

			Convey("Then the default 30 minute break should exclude the GM", func() {
				So(err, ShouldBeNil)
				So(d.SelectedGM.ID, ShouldEqual, "gm-a")
				So(d.Trace[1].Reason, ShouldEqual, eligibility.ReasonConflict)
				So(d.Trace[1].Conflicts.MinimumBreakViolations, ShouldHaveLength, 1)
			})
		})

		Convey("When re-evaluating the existing activity itself", func() {
			req := request("Escape Game", "10:00", "11:00")
			req.ActivityID = "done"
			d, err := o.Candidates(ctx, req, snap)

			Convey("Then it should not conflict with itself", func() {
				So(err, ShouldBeNil)
				So(d.Trace[1].Eligible, ShouldBeTrue)
			})
		})
	})

	Convey("Given a GM already booked on an activity with no id", t, func() {
		snap := assignment.Snapshot{
			GameMasters:    []model.GameMaster{gm("gm-a")},
			Availabilities: []model.Availability{{GMID: "gm-a", Date: day, TimeSlots: []string{model.SlotAllDay}}},
			Activities: []model.Activity{{
				Title: "Anniversaire", Date: day, StartTime: "10:00", EndTime: "11:00",
				AssignedGMID: "gm-a", Status: model.StatusAssigned,
			}},
		}
		o := assignment.New(resolver(), assignment.WithSource(fixed(0.5)))

		Convey("When a new event overlaps that booking", func() {
			d, err := o.Decide(ctx, request("Anniversaire", "10:30", "11:30"), snap)

			Convey("Then the GM should not be double-booked", func() {
				So(err, ShouldBeNil)
				So(d.Assigned(), ShouldBeFalse)
				So(d.Trace[0].Reason, ShouldEqual, eligibility.ReasonConflict)
			})
		})
	})

	Convey("Given invalid requests", t, func() {
		o := assignment.New(resolver())
		snap := snapshot()

		Convey("Then malformed or inverted times should be rejected", func() {
			_, err := o.Decide(ctx, request("Escape", "10h", "11:00"), snap)
			So(errors.Is(err, assignment.ErrInvalidEvent), ShouldBeTrue)

			_, err = o.Decide(ctx, request("Escape", "11:00", "10:00"), snap)
			So(errors.Is(err, assignment.ErrInvalidEvent), ShouldBeTrue)

			req := request("Escape", "10:00", "11:00")
			req.Date = ""
			_, err = o.Candidates(ctx, req, snap)
			So(errors.Is(err, assignment.ErrInvalidEvent), ShouldBeTrue)
		})
	})

	Convey("Given a resolver that fails", t, func() {
		o := assignment.New(failingResolver{})

		Convey("Then the error should be surfaced", func() {
			_, err := o.Decide(ctx, request("Escape", "10:00", "11:00"), snapshot())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "catalog offline")
		})
	})
}

func TestSequentialBatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given three events and two GMs where GM-A only covers the morning", t, func() {
		snap := assignment.Snapshot{
			GameMasters: []model.GameMaster{gm("gm-a"), gm("gm-b")},
			Availabilities: []model.Availability{
				{GMID: "gm-a", Date: day, TimeSlots: []string{"09:00-12:00"}},
				{GMID: "gm-b", Date: day, TimeSlots: []string{"10:00-18:00"}},
			},
		}
		events := []model.Activity{
			{ID: "e1", Title: "Soiree", Date: day, StartTime: "09:00", EndTime: "10:00", Status: model.StatusPending},
			{ID: "e2", Title: "Soiree", Date: day, StartTime: "10:00", EndTime: "11:00", Status: model.StatusPending},
			{ID: "e3", Title: "Soiree", Date: day, StartTime: "15:00", EndTime: "16:00", Status: model.StatusPending},
		}
		snap.Activities = append(snap.Activities, events...)
		o := assignment.New(resolver(), assignment.WithSource(selection.NewSource(7)))

		Convey("When each decision is committed before the next", func() {
			assigned := map[string]string{}
			for i, ev := range events {
				d, err := o.Decide(ctx, assignment.RequestFor(ev), snap)
				So(err, ShouldBeNil)
				if d.Assigned() {
					assigned[ev.ID] = d.SelectedGM.ID
					snap.Activities[i].AssignedGMID = d.SelectedGM.ID
					snap.Activities[i].Status = model.StatusAssigned
				}
			}

			Convey("Then GM-A is never double booked", func() {
				So(assigned["e1"], ShouldEqual, "gm-a")
				So(assigned["e2"], ShouldEqual, "gm-b")
				So(assigned["e3"], ShouldEqual, "gm-b")
			})
		})
	})
}

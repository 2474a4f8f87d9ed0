package tracker

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/optischema/optischema/recommend"
)

type fakeArchive struct {
	entries []AuditLogEntry
	err     error
}

func (f *fakeArchive) SaveAuditEntry(ctx context.Context, entry *AuditLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func rec(id, fingerprint string) *recommend.Recommendation {
	return &recommend.Recommendation{
		ID:          id,
		Fingerprint: fingerprint,
		Kind:        recommend.KindIndex,
	}
}

func TestStatusMatrix(t *testing.T) {
	Convey("Given the lifecycle legality matrix", t, func() {
		legal := []struct{ from, to Status }{
			{StatusProposed, StatusDismissed},
			{StatusProposed, StatusSnoozed},
			{StatusProposed, StatusApplied},
			{StatusSnoozed, StatusProposed},
			{StatusApplied, StatusRolledBack},
		}
		illegal := []struct{ from, to Status }{
			{StatusProposed, StatusRolledBack},
			{StatusProposed, StatusProposed},
			{StatusSnoozed, StatusApplied},
			{StatusApplied, StatusProposed},
			{StatusDismissed, StatusProposed},
			{StatusRolledBack, StatusApplied},
		}

		Convey("Then legal moves are allowed", func() {
			for _, tc := range legal {
				So(tc.from.CanTransitionTo(tc.to), ShouldBeTrue)
			}
		})

		Convey("Then illegal moves are refused", func() {
			for _, tc := range illegal {
				So(tc.from.CanTransitionTo(tc.to), ShouldBeFalse)
			}
		})

		Convey("Then dismissed and rolled_back are terminal", func() {
			So(StatusDismissed.Terminal(), ShouldBeTrue)
			So(StatusRolledBack.Terminal(), ShouldBeTrue)
			So(StatusProposed.Terminal(), ShouldBeFalse)
			So(StatusSnoozed.Terminal(), ShouldBeFalse)
			So(StatusApplied.Terminal(), ShouldBeFalse)
		})
	})
}

func TestTrack(t *testing.T) {
	Convey("Given a tracker", t, func() {
		tracker := NewTracker()
		ctx := context.Background()

		Convey("When a recommendation is tracked", func() {
			So(tracker.Track(ctx, rec("r1", "fp1")), ShouldBeNil)

			status, ok := tracker.Status("r1")
			So(ok, ShouldBeTrue)
			So(status, ShouldEqual, StatusProposed)

			Convey("Then the initial audit entry is written", func() {
				log := tracker.Log()
				So(log, ShouldHaveLength, 1)
				So(log[0].FromStatus, ShouldEqual, Status(""))
				So(log[0].ToStatus, ShouldEqual, StatusProposed)
				So(log[0].ID, ShouldNotBeEmpty)
			})

			Convey("Then tracking it again fails", func() {
				So(tracker.Track(ctx, rec("r1", "fp1")), ShouldNotBeNil)
			})

			Convey("Then the fingerprint counts as live", func() {
				So(tracker.Tracked("fp1"), ShouldBeTrue)
				So(tracker.Tracked("other"), ShouldBeFalse)
			})
		})

		Convey("When an untracked id is queried", func() {
			_, ok := tracker.Status("ghost")
			So(ok, ShouldBeFalse)

			_, ok = tracker.Get("ghost")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTransition(t *testing.T) {
	Convey("Given a tracked recommendation", t, func() {
		tracker := NewTracker()
		ctx := context.Background()
		So(tracker.Track(ctx, rec("r1", "fp1")), ShouldBeNil)

		Convey("When it walks snooze, wake, apply, roll back", func() {
			So(tracker.Transition(ctx, "r1", StatusSnoozed, WithActor("alice")), ShouldBeNil)
			So(tracker.Transition(ctx, "r1", StatusProposed), ShouldBeNil)
			So(tracker.Transition(ctx, "r1", StatusApplied,
				WithNote("validated in sandbox"),
				WithLatency(100, 40, 60)), ShouldBeNil)
			So(tracker.Transition(ctx, "r1", StatusRolledBack), ShouldBeNil)

			Convey("Then the audit trail holds every step in order", func() {
				log := tracker.Log()
				So(log, ShouldHaveLength, 5)
				So(log[1].Actor, ShouldEqual, "alice")
				So(log[3].Note, ShouldEqual, "validated in sandbox")
				So(log[3].Latency.ImprovementPct, ShouldEqual, 60)
				So(log[4].FromStatus, ShouldEqual, StatusApplied)
				So(log[4].ToStatus, ShouldEqual, StatusRolledBack)
			})

			Convey("Then the fingerprint is no longer live", func() {
				So(tracker.Tracked("fp1"), ShouldBeFalse)
			})

			Convey("Then nothing moves out of the terminal state", func() {
				So(tracker.Transition(ctx, "r1", StatusProposed), ShouldNotBeNil)
			})
		})

		Convey("When an illegal move is attempted", func() {
			err := tracker.Transition(ctx, "r1", StatusRolledBack)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "illegal transition")

			Convey("Then the status is unchanged and no entry is appended", func() {
				status, _ := tracker.Status("r1")
				So(status, ShouldEqual, StatusProposed)
				So(tracker.Log(), ShouldHaveLength, 1)
			})
		})

		Convey("When an unknown status is requested", func() {
			So(tracker.Transition(ctx, "r1", Status("archived")), ShouldNotBeNil)
		})

		Convey("When an untracked id is transitioned", func() {
			So(tracker.Transition(ctx, "ghost", StatusDismissed), ShouldNotBeNil)
		})
	})
}

func TestByStatus(t *testing.T) {
	Convey("Given several tracked recommendations", t, func() {
		tracker := NewTracker()
		ctx := context.Background()

		So(tracker.Track(ctx, rec("r1", "fp1")), ShouldBeNil)
		So(tracker.Track(ctx, rec("r2", "fp2")), ShouldBeNil)
		So(tracker.Track(ctx, rec("r3", "fp3")), ShouldBeNil)
		So(tracker.Transition(ctx, "r2", StatusDismissed), ShouldBeNil)

		Convey("Then ByStatus groups them", func() {
			So(tracker.ByStatus(StatusProposed), ShouldHaveLength, 2)
			So(tracker.ByStatus(StatusDismissed), ShouldHaveLength, 1)
			So(tracker.ByStatus(StatusApplied), ShouldBeEmpty)
		})
	})
}

func TestArchive(t *testing.T) {
	Convey("Given a tracker with an archive", t, func() {
		archive := &fakeArchive{}
		tracker := NewTracker(WithArchive(archive))
		ctx := context.Background()

		So(tracker.Track(ctx, rec("r1", "fp1")), ShouldBeNil)
		So(tracker.Transition(ctx, "r1", StatusDismissed), ShouldBeNil)

		Convey("Then every entry reaches the archive", func() {
			So(archive.entries, ShouldHaveLength, 2)
			So(archive.entries[1].ToStatus, ShouldEqual, StatusDismissed)
		})
	})

	Convey("Given an archive that fails", t, func() {
		archive := &fakeArchive{err: errors.New("bucket unreachable")}
		tracker := NewTracker(WithArchive(archive))
		ctx := context.Background()

		Convey("Then transitions still succeed", func() {
			So(tracker.Track(ctx, rec("r1", "fp1")), ShouldBeNil)
			So(tracker.Transition(ctx, "r1", StatusApplied), ShouldBeNil)
			So(tracker.Log(), ShouldHaveLength, 2)
		})
	})
}

package dispatch

import (
	"fmt"
	"time"
	// Embed the IANA zone database so the Berlin lookup works in minimal
	// containers without a system zoneinfo directory.
	_ "time/tzdata"
)

// schedulingZone is the calendar used by the same-day rule. Deliberately
// hard-coded: the sources this dispatcher schedules live on Berlin time,
// and a configurable zone would let a deployment silently break the
// one-process-per-day invariant.
const schedulingZone = "Europe/Berlin"

// dbTimeLayout matches MySQL TIMESTAMP(3) text: fractional seconds are
// optional on parse.
const dbTimeLayout = "2006-01-02 15:04:05.999"

// berlin is resolved once at startup; failure to resolve a zone that is
// compiled into the binary is unrecoverable.
var berlin = mustLoadZone()

func mustLoadZone() *time.Location {
	loc, err := time.LoadLocation(schedulingZone)
	if err != nil {
		panic(fmt.Sprintf("process-dispatcher: load %s: %v", schedulingZone, err))
	}
	return loc
}

// mustParseDBTime parses a dispatcher_processes.created_at value as UTC.
// The column is NOT NULL with a database-side default, so an unparsable
// value means the schema and the binary disagree: panic.
func mustParseDBTime(s string) time.Time {
	t, err := time.ParseInLocation(dbTimeLayout, s, time.UTC)
	if err != nil {
		panic(fmt.Sprintf("process-dispatcher: unparsable created_at %q: %v", s, err))
	}
	return t
}

// sameBerlinDay reports whether the two instants fall on the same calendar
// day in Europe/Berlin. Comparison happens after zone conversion; day
// arithmetic on the UTC representation would misclassify every instant
// within one or two hours of the Berlin midnight.
func sameBerlinDay(a, b time.Time) bool {
	ay, am, ad := a.In(berlin).Date()
	by, bm, bd := b.In(berlin).Date()
	return ay == by && am == bm && ad == bd
}

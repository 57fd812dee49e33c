// Package quizadmin is the Go client library for the quiz-program
// administration API.
//
// The heart of the package is the adaptive session monitor, a repeating
// self-rescheduling poll that keeps an administrator's view of one live quiz
// session fresh without hammering the backend:
//
//   - Client wraps the two read endpoints the monitor consumes, session
//     status and participant list, behind bearer authentication.
//   - Monitor owns the poll lifecycle. Start schedules the first poll one
//     interval out, Stop cancels the pending one, and every settled poll
//     schedules the next. There is never more than one poll in flight.
//   - A failed poll stretches the interval by 1.5x up to a two-minute
//     ceiling; the first success snaps it back to the 20-second base.
//
// Poll failures are logged and swallowed. The monitor degrades its interval
// instead of stopping itself, so a flaky network never kills the live view.
package quizadmin

// Version of the client library, reported in the default User-Agent.
const Version = "1.1.0"

// Package http provides HTTP handlers and middleware for the ritual engine API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at","principal":{"participant_id","is_admin"}} with the
//     token also surfaced via the `X-Session-Token` header and a `session_token`
//     cookie.
//   - POST /logout: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 No Content and clears
//     the cookie.
//   - GET /participants, POST /participants, GET|PUT|DELETE /participants/{id}:
//     directory endpoints exchanging the `participantDTO` payload defined in
//     participant_handler.go. Mutations require admin privileges; participants
//     may read their own record.
//   - GET /participants/{id}/streak?type=standup|learning_hour[&today=YYYY-MM-DD]:
//     returns the participant's active consecutive-attendance streak for one
//     ritual.
//   - GET /sessions, POST /sessions, GET|PUT /sessions/{day}/{type}: session
//     lifecycle endpoints keyed by civil day and ritual type, exchanging the
//     `sessionDTO` payload defined in session_handler.go.
//   - POST /sessions/{day}/{type}/activate|terminate|sync: state transitions.
//     Terminate commits the attendance roster atomically before ending the
//     session; sync marks an ended session as exported.
//   - GET /sessions/{day}/{type}/attendance: the uncommitted working set plus
//     the live editability flag.
//   - PUT /sessions/{day}/{type}/attendance/{participantId}: buffers one
//     tentative attendance edit. Body: {"status","reason"}.
//   - GET /sessions/{day}/{type}/roster: the committed attendance roster.
//   - GET|POST /sessions/{day}/{type}/learning-points and
//     PUT|DELETE /learning-points/{id}: per-session notes exchanging the
//     `learningPointDTO` payload defined in learning_point_handler.go.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http

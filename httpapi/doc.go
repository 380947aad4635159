// Package httpapi exposes the engine over HTTP with gorilla/mux.
//
// # Routes
//
//	POST /auth/register     public
//	POST /auth/login        public
//	GET  /auth/logout       bearer
//	POST /auth/logout-all   bearer
//	GET  /auth/me           bearer
//	GET  /auth/sessions     bearer
//	POST /save-settings     bearer
//	POST /get-settings      bearer
//	POST /delete-settings   bearer
//	GET  /healthz           public
//	GET  /metrics           public, when a metrics handler is configured
//
// Every failure is answered with {"success":false,"message":...}. The status
// is derived from sessiongate.KindOf; store failures are logged and answered
// with a generic 500 so no internal detail leaks to the client.
package httpapi

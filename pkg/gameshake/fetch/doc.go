// Package fetch drives one authenticated, paginated fetch: it obtains a
// credential, walks the pages, re-authenticates once on 401 and reports
// progress as an ordered stream of events.
package fetch

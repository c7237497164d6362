// Package credential persists access-token and refresh-token records.
//
// Each credential kind lives in its own collection. Three backends implement
// Store: a flat JSON file per kind (the console's original layout), Postgres
// and Redis. All of them upsert by owner and never move an expiry backwards.
//
// Concurrency: Postgres uses single-statement updates and Redis WATCH/MULTI,
// so neither loses updates across processes. The file backend serializes
// writers within one process; its digest re-check only narrows the window for
// writers in other processes.
package credential

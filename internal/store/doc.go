// Package store defines interfaces for persistence dependencies (lecturer
// records and scrape-run progress). Implementations live in other packages;
// this package must not import database drivers or concrete clients.
package store

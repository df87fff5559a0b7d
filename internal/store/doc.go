// Package store keeps a SQLite history of download attempts so that
// unfinished downloads survive a restart.
package store

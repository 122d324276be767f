// Package models contains the GORM persistence models of the ledger.
// Domain types stay free of ORM tags; each model converts with ToDomain and
// FromDomain and repositories only ever hand domain types to callers.
package models

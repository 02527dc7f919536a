// Package database manages the optional audit database.
//
// The audit schema holds one row per observed crash and one row per settled
// own bet. Migrations are embedded and applied with golang-migrate on start.
package database

// Package database opens PostgreSQL connection pools from config. The
// postgres session store is its only consumer.
package database

// Package database manages the SQL connection pool behind the workflow
// store: pool limits, a background liveness check, and a transaction helper.
// This package is internal and should not be imported by external projects.
package database

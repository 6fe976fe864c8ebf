// Package main is a diagnostic tool for testing database connectivity and
// inspecting live tenant data. It connects to the database, queries the
// tenants and memberships tables, and prints a summary to stdout. The
// binary exits with a non-zero code on any failure so it can be embedded in
// health checks or CI/CD pipeline steps to gate deployments on a reachable,
// populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "commshub"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=commshub password=%s dbname=commshub sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	// Check tenants
	fmt.Println("=== TENANTS ===")
	rows, err := db.Query("SELECT id, slug, name, status FROM tenants")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, slug, name, status string
		if err := rows.Scan(&id, &slug, &name, &status); err != nil {
			log.Printf("Warning: failed to scan tenant row: %v", err)
			continue
		}
		fmt.Printf("Tenant: %s (%s, status: %s, ID: %s)\n", name, slug, status, id)
	}

	// Check memberships
	fmt.Println("\n=== MEMBERSHIPS ===")
	rows2, err := db.Query("SELECT id, tenant_id, profile_id, role, status FROM memberships")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	count := 0
	for rows2.Next() {
		var id, tenantID, profileID, role, status string
		if err := rows2.Scan(&id, &tenantID, &profileID, &role, &status); err != nil {
			log.Printf("Warning: failed to scan membership row: %v", err)
			continue
		}
		fmt.Printf("Membership: profile %s in tenant %s (role: %s, status: %s)\n", profileID, tenantID, role, status)
		count++
	}

	if count == 0 {
		fmt.Println("No memberships found!")
	}
}

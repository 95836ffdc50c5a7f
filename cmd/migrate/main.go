// Command migrate manages the PostgreSQL schema.
//
// Usage:
//
//	migrate -dsn postgres://... up
//	migrate -dsn postgres://... down
//	migrate -dsn postgres://... status
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mizan.org/internal/migrate"
)

func main() {
	dsn := flag.String("dsn", os.Getenv("POSTGRES_DSN"), "postgres connection string")
	dir := flag.String("migrations", "ops/migrations/sql", "directory with .up.sql/.down.sql files")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("migrate: -dsn or POSTGRES_DSN is required")
	}
	cmd := flag.Arg(0)
	if cmd == "" {
		log.Fatal("migrate: command required (up|down|status)")
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("migrate: open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mgr := migrate.NewManager(db, *dir)
	switch cmd {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			log.Fatalf("migrate: up: %v", err)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			log.Fatalf("migrate: down: %v", err)
		}
		fmt.Println("last migration rolled back")
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			log.Fatalf("migrate: status: %v", err)
		}
		if len(applied) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, name := range applied {
			fmt.Println(name)
		}
	default:
		log.Fatalf("migrate: unknown command %q", cmd)
	}
}

// Command seed populates the permission catalog and bootstraps the
// superadmin role and account. Safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gatekey.org/internal/iam"
	"gatekey.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("GATEKEY_PG_DSN"), "PostgreSQL DSN")
		email    = flag.String("admin-email", os.Getenv("GATEKEY_ADMIN_EMAIL"), "Superadmin email")
		password = flag.String("admin-password", os.Getenv("GATEKEY_ADMIN_PASSWORD"), "Superadmin password")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or GATEKEY_PG_DSN")
	}
	if *email == "" || *password == "" {
		log.Fatal("missing superadmin credentials: provide -admin-email and -admin-password")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	seeder, err := iam.NewSeeder(store, nil)
	if err != nil {
		log.Fatalf("seeder: %v", err)
	}
	result, err := seeder.Seed(ctx, *email, *password)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Printf("resources: %d, actions: %d, permissions created: %d", result.Resources, result.Actions, result.PermissionsCreated)
	if result.RoleCreated {
		log.Println("created superadmin role")
	}
	if result.UserCreated {
		log.Println("created superadmin user")
	}
}

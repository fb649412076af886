// seed inserts development sample accounts for local testing.
// Idempotent: skips inserts if the sample student (student@dev.portal) exists.
package main

import (
	"context"
	"log"
	"os"

	"postgrad-portal/backend/internal/config"
	"postgrad-portal/backend/internal/db"
	identitydomain "postgrad-portal/backend/internal/identity/domain"
	"postgrad-portal/backend/internal/identity/store"
	"postgrad-portal/backend/internal/security"

	"github.com/google/uuid"
)

const devPassword = "password123"

type seedAccount struct {
	role        identitydomain.Role
	email       string
	displayName string
	// provisional accounts exercise the first-login activation flow.
	provisional bool
}

var seedAccounts = []seedAccount{
	{identitydomain.RoleStudent, "student@dev.portal", "Dev Student", false},
	{identitydomain.RoleStudent, "fresh.student@dev.portal", "Fresh Student", true},
	{identitydomain.RoleSupervisor, "supervisor@dev.portal", "Dev Supervisor", false},
	{identitydomain.RoleStaff, "staff@dev.portal", "Dev Staff", false},
	{identitydomain.RoleAdmin, "admin@dev.portal", "Dev Admin", false},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()
	ctx := context.Background()

	studentStore, err := store.NewPostgresStore(conn, identitydomain.RoleStudent)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	existing, err := studentStore.FindByEmail(ctx, "student@dev.portal")
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (student@dev.portal exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash: %v", err)
	}

	for _, a := range seedAccounts {
		status := identitydomain.StatusActive
		verified := true
		if a.provisional {
			status = identitydomain.StatusPending
			verified = false
		}
		table := tableFor(a.role)
		_, err := conn.ExecContext(ctx,
			`INSERT INTO `+table+` (id, email, display_name, password_hash, status, verified, provisional)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New().String(), a.email, a.displayName, hash, status, verified, a.provisional)
		if err != nil {
			log.Fatalf("seed %s %s: %v", a.role, a.email, err)
		}
		log.Printf("seeded %s %s (password %q)", a.role, a.email, devPassword)
	}
}

func tableFor(role identitydomain.Role) string {
	switch role {
	case identitydomain.RoleSupervisor:
		return "supervisors"
	case identitydomain.RoleStaff:
		return "staff_members"
	case identitydomain.RoleAdmin:
		return "administrators"
	default:
		return "students"
	}
}

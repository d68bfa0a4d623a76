package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/prasatya/authflow/config"
	"github.com/prasatya/authflow/internal/domain/entity"
)

// Seeds a profile row for an identity that already exists at the
// provider. Credentials live at the provider; this side only stores the
// application profile.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	userID := flag.String("id", "", "provider user id (uuid); generated when empty")
	email := flag.String("email", "demo@example.com", "account email")
	name := flag.String("name", "Demo User", "display name")
	role := flag.String("role", entity.RoleCustomer, "profile role (customer or admin)")
	forcePwd := flag.Bool("force-password-change", false, "require a password change on first login")
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	}
	if *role != entity.RoleAdmin && *role != entity.RoleCustomer {
		log.Fatalf("unknown role %q", *role)
	}

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	var id string
	err = db.QueryRow(`
		INSERT INTO profiles (id, name, email, status, role, requires_password_change)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, role=EXCLUDED.role
		RETURNING id
	`, *userID, *name, *email, entity.StatusActive, *role, *forcePwd).Scan(&id)
	if err != nil {
		log.Fatalf("failed to seed profile: %v", err)
	}
	fmt.Printf("seeded profile: id=%s email=%s name=%s role=%s\n", id, *email, *name, *role)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/bingo/go/internal/dbconfig"
	"github.com/mcdev12/bingo/go/internal/models"
)

// User mirrors the JSON snapshot
type User struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Email *string         `json:"email"`
	Role  models.UserRole `json:"role"`
}

func main() {
	path := "go/internal/assets/users.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert and count
	var (
		total    = len(users)
		inserted int
		skipped  int
		errs     int
	)

	for _, u := range users {
		if u.Role == "" {
			u.Role = models.UserRolePlayer
		}
		cmdTag, err := pool.Exec(context.Background(), `
            INSERT INTO users (id, name, email, role)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT DO NOTHING
        `, u.ID, u.Name, u.Email, string(u.Role))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting user %s: %v\n", u.ID, err)
			errs++
			continue
		}
		if cmdTag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Users seed complete: %d total, %d inserted, %d skipped, %d errors\n",
		total, inserted, skipped, errs,
	)
}

package db

import (
	"context"
	"strings"
	"testing"

	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/security"
)

func TestEnsureAdminUser(t *testing.T) {
	users := memory.NewUsersRepo()
	cfg := config.Config{AdminEmail: "Root@Example.com", AdminPassword: "admin-pass", AdminName: "Root"}
	ctx := context.Background()

	created, err := EnsureAdminUser(ctx, users, cfg)
	if err != nil || !created {
		t.Fatalf("first seed: created=%v err=%v", created, err)
	}

	admin, err := users.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("lookup admin: %v", err)
	}
	if admin.Role != user.RoleAdmin || !admin.IsActive {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if err := security.CheckPassword(admin.PasswordHash, "admin-pass"); err != nil {
		t.Fatalf("admin password not usable: %v", err)
	}

	created, err = EnsureAdminUser(ctx, users, cfg)
	if err != nil || created {
		t.Fatalf("second seed should be a no-op: created=%v err=%v", created, err)
	}
}

func TestEnsureAdminUser_NotConfigured(t *testing.T) {
	users := memory.NewUsersRepo()

	created, err := EnsureAdminUser(context.Background(), users, config.Config{AdminEmail: "a@example.com"})
	if err != nil || created {
		t.Fatalf("missing password must skip seeding: created=%v err=%v", created, err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	var ups, downs int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Fatalf("ups=%d downs=%d", ups, downs)
	}
}

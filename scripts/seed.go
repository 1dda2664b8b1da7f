package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"kioskops/auth"
	"kioskops/config"
	"kioskops/db"
	"kioskops/models"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	cfg.Validate()

	// Initialize Firestore
	ctx := context.Background()
	firestoreDB, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, cfg.Ops.MaxBatchWrites)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	defer firestoreDB.Close()

	log.Println("🌱 Starting database seeding...")

	// Seed kiosks
	if err := seedKiosks(ctx, firestoreDB, cfg.Ops.Zones); err != nil {
		log.Fatalf("Failed to seed kiosks: %v", err)
	}

	// Seed users
	if err := seedUsers(ctx, firestoreDB); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	log.Println("✅ Database seeding completed successfully!")
}

func seedKiosks(ctx context.Context, firestoreDB *db.FirestoreDB, zones []string) error {
	now := time.Now()
	for i, zone := range zones {
		for j := 1; j <= 2; j++ {
			kiosk := models.Kiosk{
				ID:           fmt.Sprintf("KIOSK-%d%02d", i+1, j),
				Name:         fmt.Sprintf("%s Kiosk %d", zone, j),
				Location:     fmt.Sprintf("%s, Bay %d", zone, j),
				Zone:         zone,
				FillLevel:    10 * j,
				LiquidHeight: 2.5 * float64(j),
				LastUpdated:  &now,
			}
			if err := firestoreDB.CreateKiosk(ctx, &kiosk); err != nil {
				return fmt.Errorf("failed to create kiosk %s: %w", kiosk.ID, err)
			}
			log.Printf("  ✓ Created kiosk: %s", kiosk.Name)
		}
	}
	return nil
}

func seedUsers(ctx context.Context, firestoreDB *db.FirestoreDB) error {
	now := time.Now()

	users := []struct {
		User     models.User
		Password string
	}{
		{
			User: models.User{
				UID:    "user-superadmin",
				Email:  "superadmin@example.com",
				Name:   "Super Admin",
				Role:   models.RoleSuperAdmin,
				Active: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:    "user-admin",
				Email:  "admin@example.com",
				Name:   "Ops Admin",
				Role:   models.RoleAdmin,
				Active: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:               "agent-zone-a-weekday",
				Email:             "agent.a.weekday@example.com",
				Name:              "Aida Rahman",
				Role:              models.RoleAgent,
				Active:            true,
				Zone:              "Zone A",
				ShiftType:         models.ShiftWeekday,
				PushNotifications: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:               "agent-zone-a-weekend",
				Email:             "agent.a.weekend@example.com",
				Name:              "Farid Ismail",
				Role:              models.RoleAgent,
				Active:            true,
				Zone:              "Zone A",
				ShiftType:         models.ShiftWeekend,
				PushNotifications: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:               "agent-zone-b-weekday",
				Email:             "agent.b.weekday@example.com",
				Name:              "Mei Ling Tan",
				Role:              models.RoleAgent,
				Active:            true,
				Zone:              "Zone B",
				ShiftType:         models.ShiftWeekday,
				PushNotifications: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:          "user-demo",
				Email:        "demo@example.com",
				Name:         "Demo User",
				Role:         models.RoleUser,
				Active:       true,
				EmailUpdates: true,
			},
			Password: "changeme123",
		},
		{
			User: models.User{
				UID:    "kiosk-service",
				Email:  "kiosk@example.com",
				Name:   "Kiosk Service Account",
				Role:   models.RoleKiosk,
				Active: true,
			},
			Password: "changeme123",
		},
	}

	for _, userData := range users {
		passwordHash, err := auth.HashPassword(userData.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", userData.User.Email, err)
		}
		userData.User.PasswordHash = passwordHash
		userData.User.CreatedAt = now

		// Agents get a sequential agent ID from the counter document
		if userData.User.Role == models.RoleAgent {
			agentID, err := firestoreDB.NextAgentID(ctx)
			if err != nil {
				return fmt.Errorf("failed to allocate agent ID for %s: %w", userData.User.Email, err)
			}
			userData.User.AgentID = agentID
		}

		if err := firestoreDB.CreateUser(ctx, &userData.User); err != nil {
			return fmt.Errorf("failed to create user %s: %w", userData.User.Email, err)
		}

		log.Printf("  ✓ Created user: %s (role: %s)", userData.User.Email, userData.User.Role)
	}

	return nil
}

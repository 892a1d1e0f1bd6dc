package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"payments", "appointments", "user_permissions", "permissions", "users"} {
				if _, err := db.Exec("DELETE FROM " + table); err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		users := []struct {
			Email     string
			Name      string
			Phone     string
			Specialty string
		}{
			{"alice@mail.com", "Alice Tan", "+15550100", ""},
			{"bob@mail.com", "Bob Reyes", "+15550101", ""},
			{"drsmith@clinic.com", "Dr. Smith", "+15550200", "Orthodontics"},
			{"drpatel@clinic.com", "Dr. Patel", "+15550201", "Endodontics"},
			{"admin@clinic.com", "Clinic Admin", "", ""},
		}

		for _, u := range users {
			if userExists(db, u.Email) {
				fmt.Printf("user %s already exists; will ensure permissions\n", u.Email)
				continue
			}
			_, err := db.Exec(`INSERT INTO users (email, name, password_hash, phone, specialty, is_active, created_at, updated_at)
			                   VALUES ($1, $2, $3, $4, $5, true, now(), now())`,
				u.Email, u.Name, string(hash), u.Phone, u.Specialty)
			if err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Println("Seeded user:", u.Email)
		}

		permissions := []struct {
			Name string
			Desc string
		}{
			{"admin", "full administrator"},
			{"book_appointments", "Can book appointments and pay for them"},
			{"approve_appointments", "Can approve pending appointments"},
			{"reject_appointments", "Can reject pending appointments"},
			{"complete_appointments", "Can mark appointments completed"},
			{"manage_sync", "Can operate the payment status monitor"},
			{"refund_payments", "Can refund completed payments"},
		}

		for _, p := range permissions {
			var pid int64
			if err := db.Get(&pid, "SELECT id FROM permissions WHERE name = $1", p.Name); err != nil {
				if _, err := db.Exec("INSERT INTO permissions (name, description, created_at) VALUES ($1, $2, now())", p.Name, p.Desc); err != nil {
					log.Fatalf("failed to insert permission %s: %v", p.Name, err)
				}
			}
		}

		grants := map[string][]string{
			"alice@mail.com":     {"book_appointments"},
			"bob@mail.com":       {"book_appointments"},
			"drsmith@clinic.com": {"approve_appointments", "reject_appointments", "complete_appointments"},
			"drpatel@clinic.com": {"approve_appointments", "reject_appointments", "complete_appointments"},
		}
		adminEmail := "admin@clinic.com"
		for _, p := range permissions {
			grants[adminEmail] = append(grants[adminEmail], p.Name)
		}

		for email, names := range grants {
			var userID int64
			if err := db.Get(&userID, "SELECT id FROM users WHERE email = $1", email); err != nil {
				log.Fatalf("failed to lookup user %s: %v", email, err)
			}
			for _, name := range names {
				grantPermission(db, userID, name)
			}
			fmt.Printf("Granted permissions to %s: %v\n", email, names)
		}

		fmt.Println("Seed complete. All seeded accounts use password:", password)
	},
}

func userExists(db *sqlx.DB, email string) bool {
	var one int
	return db.Get(&one, "SELECT 1 FROM users WHERE email = $1", email) == nil
}

func grantPermission(db *sqlx.DB, userID int64, permission string) {
	var pid int64
	if err := db.Get(&pid, "SELECT id FROM permissions WHERE name = $1", permission); err != nil {
		log.Fatalf("permission not found %s: %v", permission, err)
	}

	var one int
	if err := db.Get(&one, "SELECT 1 FROM user_permissions WHERE user_id = $1 AND permission_id = $2", userID, pid); err == nil {
		return
	}

	if _, err := db.Exec("INSERT INTO user_permissions (user_id, permission_id, granted_by, created_at) VALUES ($1, $2, NULL, now())", userID, pid); err != nil {
		log.Fatalf("failed to grant permission %s: %v", permission, err)
	}
}

package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"zkaccount-backend/internal/config"
	"zkaccount-backend/internal/db"
	"zkaccount-backend/internal/models"
)

type options struct {
	Config string `short:"c" long:"config" description:"Config file holding database.dsn"`
}

type statusCount struct {
	Status string
	Count  int64
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	fmt.Println("🔍 Verifying database connection and journal schema...")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.LoadConfig(opts.Config)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := cfg.Logging.NewLogger()

	gdb, err := db.Open(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close(gdb)

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	table := models.TransactionRecord{}.TableName()
	ok := true
	for column, want := range map[string]int64{"tx_hash": 66, "from": 42, "to": 42, "token": 42} {
		var size sql.NullInt64
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = current_schema()
			AND table_name = $1
			AND column_name = $2
		`, table, column).Scan(&size)
		switch {
		case err == sql.ErrNoRows:
			fmt.Printf("❌ %s.%s column does not exist!\n", table, column)
			ok = false
		case err != nil:
			log.Fatalf("Failed to query column size: %v", err)
		case !size.Valid || size.Int64 < want:
			fmt.Printf("❌ %s.%s is too small! Need VARCHAR(%d), got %v\n", table, column, want, size.Int64)
			ok = false
		default:
			fmt.Printf("✅ %s.%s VARCHAR(%d)\n", table, column, size.Int64)
		}
	}

	var counts []statusCount
	if err := gdb.Model(&models.TransactionRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		log.Fatalf("Failed to count journal rows: %v", err)
	}
	fmt.Println("📊 Journal rows by status:")
	for _, c := range counts {
		fmt.Printf("   %-10s %d\n", c.Status, c.Count)
	}

	if !ok {
		os.Exit(1)
	}
	fmt.Println("✅ Journal schema verified")
}

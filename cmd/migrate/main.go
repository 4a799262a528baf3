package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/leetosc/quiz-aide/internal/config"
	"github.com/leetosc/quiz-aide/pkg/database"
)

const usage = `usage: migrate [-config path] <command>

commands:
  up             применить все миграции
  down           откатить одну миграцию
  force VERSION  выставить версию и снять dirty-флаг
  version        показать текущую версию`

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "путь к config.yaml")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println(usage)
		os.Exit(2)
	}

	path := *configPath
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db, cfg.Database.MigrationsPath)
	if err != nil {
		log.Fatal(err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires VERSION")
		}
		version, convErr := strconv.Atoi(flag.Arg(1))
		if convErr != nil {
			log.Fatalf("Invalid version %q: %v", flag.Arg(1), convErr)
		}
		fmt.Printf("Forcing migration version to %d to clean dirty state...\n", version)
		err = m.Force(version)
	case "version":
		version, dirty, verErr := m.Version()
		if errors.Is(verErr, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied yet")
			return
		}
		if verErr != nil {
			log.Fatal(verErr)
		}
		fmt.Printf("Version: %d, dirty: %t\n", version, dirty)
		return
	default:
		fmt.Printf("Unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No change")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("Success!")
}

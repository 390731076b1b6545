package main

import (
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	config "github.com/NordCoder/Trustwatch/internal/config/trust-scheduler"
	"github.com/NordCoder/Trustwatch/internal/obs"
)

func main() {
	cfgPath := flag.String("config", "config/trust-scheduler.yaml", "path to config file")
	dir := flag.String("dir", "migrations", "migrations directory")
	cmd := flag.String("cmd", "up", "goose command: up, down, status")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l = l.With(zap.String("component", "migrator"))

	dsn := cfg.DB.DSN
	if v := os.Getenv("DB_DSN"); v != "" {
		dsn = v
	}
	if dsn == "" {
		l.Fatal("db dsn is empty")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		l.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	switch *cmd {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	default:
		l.Fatal("unknown command", zap.String("cmd", *cmd))
	}
	if err != nil {
		l.Fatal("migrate", zap.String("cmd", *cmd), zap.Error(err))
	}
	l.Info("migrations done", zap.String("cmd", *cmd), zap.String("dir", *dir))
}

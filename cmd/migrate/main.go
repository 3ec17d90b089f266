package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"relief.org/internal/migrate"
	"relief.org/internal/obs"
	"relief.org/internal/store/pg"
	"relief.org/ops/migrations"
)

func main() {
	var (
		dsn            = flag.String("dsn", os.Getenv("RELIEF_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = flag.String("migrations", "", "Directory of SQL migrations (default: embedded)")
		seedsPath      = flag.String("seeds", "", "Directory of SQL seeds (default: embedded)")
	)
	flag.Parse()
	log := obs.Logger()

	if *dsn == "" {
		fatal("missing DSN: provide via -dsn or RELIEF_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		fatal("usage: migrate [up|down|seed|status]")
	}

	var sqlFS, seedFS fs.FS = migrations.SQL, migrations.Seeds
	if *migrationsPath != "" {
		sqlFS = os.DirFS(*migrationsPath)
	}
	if *seedsPath != "" {
		seedFS = os.DirFS(*seedsPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn, pg.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		fatal("open db: " + err.Error())
	}
	defer store.Close()

	mgr := migrate.NewManager(store.DB(), sqlFS, seedFS, migrate.WithLogger(log))

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		fatal(fmt.Sprintf("unknown command %q", flag.Arg(0)))
	}
	if err != nil {
		store.Close()
		fatal(fmt.Sprintf("migrate %s: %v", flag.Arg(0), err))
	}
}

func fatal(msg string) {
	obs.Logger().Error(msg)
	os.Exit(1)
}

package main

import (
	"context"
	"flag"

	"github.com/anky/otc-indexer/internal/config"
	"github.com/anky/otc-indexer/internal/services/db"
	"github.com/sirupsen/logrus"
)

// migrator creates the read-model schema without starting the indexer
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	log.Info("creating schema...")

	env := flag.String("env", "", "path to .env file")

	dbpath := flag.String("dbpath", ".", "path to the sqlite db folder, used when DATABASE_URL is not set")

	flag.Parse()

	ctx := context.Background()

	conf, err := config.New(ctx, *env)
	if err != nil {
		log.Fatal(err)
	}

	var d *db.DB
	if conf.DatabaseURL != "" {
		d, err = db.NewPostgresDB(ctx, conf.DatabaseURL)
	} else {
		d, err = db.NewSQLiteDB(ctx, *dbpath)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	// NewDB already migrated, running it again checks the schema is idempotent
	err = d.Migrate(ctx)
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("%s schema ready", d.Dialect())
}

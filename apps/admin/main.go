package main

import (
	"log"
	"os"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/user"
	logsvc "github.com/trezcool/tasksphere/services/logger"
	"github.com/trezcool/tasksphere/storage/database"
	sqlxrepos "github.com/trezcool/tasksphere/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	defer db.Close()

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(sqlxrepos.New(db, logger)), logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

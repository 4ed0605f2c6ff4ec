package main

import (
	"log"
	"os"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	logsvc "github.com/trezcool/muziki/services/logger"
	"github.com/trezcool/muziki/storage/database"
	"github.com/trezcool/muziki/storage/database/gormrepos"
)

func main() {
	conf := core.Conf

	zl, err := logsvc.NewZap("admin", conf.Debug)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)

	// set up DB
	errAndDie(logger, database.CreateIfNotExist(conf))
	sqlDB, err := database.Open(conf)
	errAndDie(logger, err)
	db, err := database.OpenGorm(sqlDB, conf.Debug)
	errAndDie(logger, err)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	profileSvc := profile.NewService(gormrepos.NewProfileRepository(db))

	// start CLI
	cli := commandLine{
		db:         sqlDB,
		tx:         gormrepos.NewTransactor(db),
		usrSvc:     user.NewService(gormrepos.NewUserRepository(db), mailSvc),
		profileSvc: profileSvc,
		feeSvc:     fee.NewService(gormrepos.NewFeeRepository(db), profileSvc, mailSvc),
		mailSvc:    mailSvc,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = sqlDB.Close()
	_ = logger.Sync()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger *logsvc.RollbarLogger, err error) {
	if err != nil {
		logger.Fatal("admin setup failed", err)
	}
}

package main

import (
	"context"
	"io"
	"log"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/muziki/apps/api/echo"
	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/audio"
	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
	aisvc "github.com/trezcool/muziki/services/ai"
	cachesvc "github.com/trezcool/muziki/services/cache"
	emailsvc "github.com/trezcool/muziki/services/email"
	"github.com/trezcool/muziki/services/filestore"
	logsvc "github.com/trezcool/muziki/services/logger"
	"github.com/trezcool/muziki/storage/database"
	"github.com/trezcool/muziki/storage/database/gormrepos"
)

func main() {
	conf := core.Conf

	zl, err := logsvc.NewZap("api", conf.Debug)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	defer func() { _ = logger.Sync() }()

	if err = run(conf, logger); err != nil {
		logger.Fatal("api stopped", err)
	}
}

func run(conf *core.Config, logger *logsvc.RollbarLogger) error {
	ctx := context.Background()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	sqlDB, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err = database.Migrate(sqlDB); err != nil {
		return err
	}
	db, err := database.OpenGorm(sqlDB, conf.Debug)
	if err != nil {
		return err
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	files, err := filestore.New(ctx, conf.Storage)
	if err != nil {
		return errors.Wrap(err, "opening file store")
	}
	if c, ok := files.(io.Closer); ok {
		defer c.Close()
	}

	var cache ai.Cache = cachesvc.NewMemory()
	if conf.Cache.RedisURL != "" {
		rc, err := cachesvc.NewRedis(ctx, conf.Cache.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connecting to redis")
		}
		defer rc.Close()
		cache = rc
	}

	gen, err := aisvc.New(ctx, conf.AI)
	if err != nil {
		return err
	}
	aiSvc := ai.NewService(gen, cache, logger, ai.ServiceOptions{
		MaxTokens:   conf.AI.MaxTokens,
		Temperature: conf.AI.Temperature,
		Timeout:     conf.AI.Timeout,
		CacheTTL:    conf.AI.CacheTTL,
	})
	analyzer := audio.NewAnalyzer()

	profileSvc := profile.NewService(gormrepos.NewProfileRepository(db))

	// start API server
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Transactor:    gormrepos.NewTransactor(db),
		UserSvc:       user.NewService(gormrepos.NewUserRepository(db), mailSvc),
		ProfileSvc:    profileSvc,
		LessonSvc:     lesson.NewService(gormrepos.NewLessonRepository(db), aiSvc),
		AISvc:         aiSvc,
		Analyzer:      analyzer,
		AssignmentSvc: assignment.NewService(gormrepos.NewAssignmentRepository(db), files, analyzer, logger),
		FeeSvc:        fee.NewService(gormrepos.NewFeeRepository(db), profileSvc, mailSvc),
	})
	go srv.Start()
	logger.Info("api started", map[string]interface{}{"address": conf.Server.Address, "ai": gen.Name()})

	// blocking main and waiting for shutdown
	select {
	case err = <-srv.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-srv.ShutdownSignal():
		logger.Info("shutdown started", map[string]interface{}{"signal": sig.String()})

		// give outstanding requests a deadline for completion
		sctx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
		defer cancel()

		if err = srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
			return errors.Wrap(err, "could not stop server gracefully")
		}
		logger.Info("shutdown complete")
	}
	return nil
}

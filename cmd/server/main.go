package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"semaphore/classroom/internal/classes"
	"semaphore/classroom/internal/config"
	"semaphore/classroom/internal/db"
	"semaphore/classroom/internal/enrollment"
	"semaphore/classroom/internal/exercise"
	classroomgrpc "semaphore/classroom/internal/grpc"
	internalhttp "semaphore/classroom/internal/http"
	"semaphore/classroom/internal/jobs"
	"semaphore/classroom/internal/profiles"
	"semaphore/classroom/internal/repository"
	"semaphore/classroom/internal/storage"
	"semaphore/classroom/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("telemetry shutdown error: %v", err)
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	if err := db.NewStore(pool).Migrate(ctx); err != nil {
		log.Fatalf("db migration failed: %v", err)
	}

	var orphans storage.OrphanRecorder
	var ledger *storage.OrphanLedger
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		ledger = storage.NewOrphanLedger(redisClient)
		orphans = ledger
	}

	var files storage.FileStore = storage.Disabled{}
	if cfg.StorageEnabled() {
		b2Store, err := storage.NewB2FileStore(ctx, cfg.B2AccountID, cfg.B2ApplicationKey, cfg.B2Bucket)
		if err != nil {
			log.Fatalf("b2 init failed: %v", err)
		}
		files = b2Store
	} else {
		log.Printf("file storage disabled: B2 credentials not set, uploads will fail")
	}
	uploads := storage.NewUploader(files, orphans, cfg.UploadMaxBytes, nil)

	repo := repository.NewRepository(pool)
	server := internalhttp.NewServer(cfg,
		profiles.NewService(repo, uploads, nil),
		classes.NewService(repository.Classes{Repository: repo}, nil),
		enrollment.NewService(repository.Enrollment{Repository: repo}, nil),
		exercise.NewService(repository.Exercises{Repository: repo}, uploads, nil),
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, healthServer, err := classroomgrpc.NewServer(cfg.ServiceAuthToken)
	if err != nil {
		log.Fatalf("grpc init failed: %v", err)
	}
	classroomgrpc.WatchDatabase(ctx, healthServer, pool.Ping, 15*time.Second)

	if ledger != nil && cfg.StorageEnabled() {
		jobs.StartOrphanSweepJob(ctx, cfg, ledger, files)
	} else {
		jobs.StartOrphanSweepJob(ctx, cfg, nil, nil)
	}

	go func() {
		log.Printf("classroom http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		log.Printf("classroom grpc listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	grpcServer.GracefulStop()
}

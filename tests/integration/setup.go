package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	postgresmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"orderflow/pkg/migrations"
)

type TestInfra struct {
	PostgresDB   *sql.DB
	PostgresConn string
	RedisClient  *redisclient.Client
	KafkaBrokers []string
}

func SetupTestInfra(t *testing.T) *TestInfra {
	return SetupTestInfraWithOptions(t, true, true, false)
}

func SetupTestInfraWithOptions(t *testing.T, needPostgres, needRedis, needKafka bool) *TestInfra {
	t.Helper()

	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	infra := &TestInfra{}

	if needPostgres {
		setupPostgres(t, ctx, infra)
	}

	if needRedis {
		setupRedis(t, ctx, infra)
	}

	if needKafka {
		setupKafka(t, ctx, infra)
	}

	return infra
}

func setupPostgres(t *testing.T, ctx context.Context, infra *TestInfra) {
	container, err := postgresmodule.Run(ctx, "postgres:15",
		postgresmodule.WithDatabase("test_db"),
		postgresmodule.WithUsername("test_user"),
		postgresmodule.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(10*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	conn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres uri: %v", err)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sql.Open("postgres", conn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctxWithTimeout); err != nil {
		db.Close()
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	infra.PostgresDB = db
	infra.PostgresConn = conn
	t.Cleanup(func() {
		db.Close()
	})
}

func setupRedis(t *testing.T, ctx context.Context, infra *TestInfra) {
	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}

	opt, err := redisclient.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}

	client := redisclient.NewClient(opt)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(ctxWithTimeout).Err(); err != nil {
		client.Close()
		t.Fatalf("failed to ping redis: %v", err)
	}

	infra.RedisClient = client
	t.Cleanup(func() {
		client.Close()
	})
}

func setupKafka(t *testing.T, ctx context.Context, infra *TestInfra) {
	container, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0",
		kafkamodule.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	infra.KafkaBrokers = brokers
}

func runMigrations(db *sql.DB) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	projectRoot := filepath.Join(workDir, "..", "..")
	migrationsPath := filepath.Join(projectRoot, "migrations", "postgres")

	return migrations.RunPostgres(db, migrationsPath)
}

package mysql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/loykin/latter/internal/adapter"
	"github.com/loykin/latter/internal/common"
	"github.com/loykin/latter/internal/migration"
	"github.com/loykin/latter/internal/retry"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMySQL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "mysql:8.4",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "root",
			"MYSQL_DATABASE":      "latter_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("3306/tcp"),
			wait.ForLog("ready for connections").WithOccurrence(2),
		).WithDeadline(150 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping MySQL container test: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("mysql://root:root@%s:%s/latter_test", host, port.Port())
}

func TestMySQLAdapter_Ledger(t *testing.T) {
	url := startMySQL(t)
	ctx := context.Background()

	dsn, err := FromURL(url)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	rc := retry.DefaultRetryConfig()
	rc.MaxRetries = 10
	a, err := New(Config{DSN: dsn}, adapter.WithLogger(common.NewNopLogger()), adapter.WithRetry(rc))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() { _ = a.Disconnect() }()

	const table = "schema_migrations"
	if err := a.CreateMigrationsTable(ctx, table); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := a.TableExists(ctx, table); err != nil || !ok {
		t.Fatalf("ledger should exist: %v %v", ok, err)
	}

	m := migration.New("001_items", "CREATE TABLE items (id INT PRIMARY KEY); INSERT INTO items VALUES (1);", "DROP TABLE items;", migration.WithTimestamp(100))
	if _, err := a.Execute(ctx, m.Up()); err != nil {
		t.Fatalf("multi statement up: %v", err)
	}
	at := time.Date(2024, 2, 3, 4, 5, 6, 123000, time.UTC)
	if err := a.MarkMigrationApplied(ctx, m.ToStatus(true, &at), table); err != nil {
		t.Fatalf("mark: %v", err)
	}
	applied, err := a.GetAppliedMigrations(ctx, table)
	if err != nil {
		t.Fatalf("get applied: %v", err)
	}
	if len(applied) != 1 || applied[0].Name != "001_items" || !applied[0].AppliedAt.Equal(at) {
		t.Fatalf("unexpected ledger %+v", applied)
	}
	if err := a.MarkMigrationRolledBack(ctx, applied[0], table); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

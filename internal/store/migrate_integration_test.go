// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/melodies/melodies/internal/store"
)

var _ = Describe("Schema migrations", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("melodies_test"),
			postgres.WithUsername("melodies"),
			postgres.WithPassword("melodies"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			Expect(migrator.Close()).To(Succeed())
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("starts at version zero", func() {
		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())
	})

	It("applies every migration", func() {
		Expect(migrator.Up()).To(Succeed())

		status, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(status.Pending).To(BeEmpty())
		Expect(status.Applied).To(Equal([]uint{1, 2}))
	})

	It("connects through the retrying pool and enforces case-insensitive email uniqueness", func() {
		pool, err := store.Connect(ctx, store.PoolConfig{URL: connStr, ConnectAttempts: 3}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		insert := func(pool *pgxpool.Pool, id, email string) error {
			_, err := pool.Exec(ctx, `INSERT INTO accounts (id, email, password_hash, name, birthday, gender)
				VALUES ($1, $2, 'h', 'n', '2000-01-01', 'male')`, id, email)
			return err
		}
		Expect(insert(pool, "01HZX0000000000000000000A1", "dup@test.com")).To(Succeed())
		Expect(insert(pool, "01HZX0000000000000000000A2", "DUP@test.com")).NotTo(Succeed())
		Expect(store.ReadinessCheck(pool)(ctx)).To(Succeed())
	})

	It("rejects unknown gender values", func() {
		pool, err := store.Connect(ctx, store.PoolConfig{URL: connStr}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(pool.Close)

		_, err = pool.Exec(ctx, `INSERT INTO accounts (id, email, password_hash, name, birthday, gender)
			VALUES ('01HZX0000000000000000000B1', 'g@test.com', 'h', 'n', '2000-01-01', 'robot')`)
		Expect(err).To(HaveOccurred())
	})

	It("rolls back one step and re-applies it", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(migrator.Steps(1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(2)))
	})

	It("rolls everything back", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})

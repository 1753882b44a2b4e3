// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Fragloop Contributors

//go:build integration

package store_test

import (
	"context"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fragloop/fragloop/internal/store"
)

var _ = Describe("Postgres backend", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
		kv        *store.Postgres
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("fragloop_test"),
			postgres.WithUsername("fragloop"),
			postgres.WithPassword("fragloop"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		kv, err = store.OpenPostgres(ctx, connStr, slog.Default())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if kv != nil {
			Expect(kv.Close()).To(Succeed())
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("migrates the schema to the latest version", func() {
		m, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		pending, err := m.Pending()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())
	})

	It("round-trips values through a plugin namespace", func() {
		ns := store.Namespace(kv, store.PluginPrefix("motd"))

		Expect(ns.Set(ctx, "text", "hello")).To(Succeed())
		Expect(ns.Set(ctx, "text", "welcome")).To(Succeed())

		v, ok, err := ns.Get(ctx, "text")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("welcome"))

		keys, err := ns.Keys(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(ConsistOf("text"))

		Expect(ns.Delete(ctx, "text")).To(Succeed())
		_, ok, err = ns.Get(ctx, "text")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("reopens an already migrated database", func() {
		again, err := store.OpenPostgres(ctx, connStr, slog.Default())
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Close()).To(Succeed())
	})
})

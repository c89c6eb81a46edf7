// Package core provides the business logic of the fixture service.
//
// It ties the resource catalog, the reader cache and the PostgreSQL export
// together behind [Service], independent of any transport. The web package
// is one caller; tests drive it directly with an in-memory filesystem.
//
// # Resources
//
// Resources are registered in package catalog and read with package
// textreader. A [Service] never reads files itself: it asks its
// [ReaderCache] for the reader of a resource path, and the cache runs at most
// one read per path at a time. [NewReaderCache] builds the usual cache over
// an fs.FS:
//
//	cache, err := core.NewReaderCache(resources.FS(), slog.Default())
//	svc, err := core.NewService(cache, pool, core.Config{TablePrefix: "fixture"})
//	desc, err := svc.Describe("name.female")
//
// Cached readers are read-only and shared between requests. [Service.Reload]
// and [Service.ResetCache] drop cached readers so the next access reads the
// resource again.
//
// # Export
//
// [Service.Export] copies a resource into a table named by
// store.TableName, inside one transaction, tagging every row with a fresh
// load id. Exports are bounded by an [ExportLimiter]; [Service.WaitForExports]
// is used during shutdown. Without a database, Export returns
// [ErrExportDisabled].
//
// # Errors
//
// Errors are wrapped with %w and keep their textreader, store and pgconn
// causes. [MapError] turns them into a [UserMessage] with a support code.
package core

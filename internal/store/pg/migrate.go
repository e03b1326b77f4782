package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

// migrationLockID es el id de pg_advisory_lock compartido por todas las réplicas.
func migrationLockID(name string) int64 {
	h := sha256.Sum256([]byte("migration:" + name))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// Migrate ejecuta todos los *_up.sql de fsys (orden lexicográfico) bajo un advisory
// lock, para que réplicas arrancando a la vez no compitan. Devuelve cuántos scripts aplicó.
// Los scripts deben ser idempotentes.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS) (int, error) {
	log := logger.From(ctx).With(logger.Component("pg"), logger.Op("migrate"))
	lockID := migrationLockID("tasks")

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// El lock es de sesión: se toma y libera sobre la misma conexión.
	conn, err := s.pool.Acquire(lockCtx)
	if err != nil {
		return 0, fmt.Errorf("pg: acquire conn for migrations: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(lockCtx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return 0, fmt.Errorf("pg: migration lock: %w", err)
	}
	if !acquired {
		log.Info("migration lock held by another process, waiting")
		if _, err := conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
			return 0, fmt.Errorf("pg: wait for migration lock: %w", err)
		}
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			log.Warn("failed to release migration lock", logger.Err(err))
		}
	}()

	files, err := upScripts(fsys)
	if err != nil {
		return 0, err
	}
	var applied int
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return applied, err
		}
		if _, err := conn.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("pg: exec %s: %w", f, err)
		}
		applied++
	}
	log.Info("migrations applied", logger.Count(applied))
	return applied, nil
}

func upScripts(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

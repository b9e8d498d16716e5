package dbmanager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// backupPages is how many pages each backup step copies before yielding the
// source lock to writers.
const backupPages = 256

// Backup copies src into a new database dst using SQLite's online backup API,
// so the copy is consistent even while src is being written. dst must not
// exist yet.
func (m *Manager) Backup(ctx context.Context, src, dst string) (DatabaseInfo, error) {
	src, err := NormalizeName(src)
	if err != nil {
		return DatabaseInfo{}, err
	}
	dst, err = NormalizeName(dst)
	if err != nil {
		return DatabaseInfo{}, err
	}
	if src == dst {
		return DatabaseInfo{}, fmt.Errorf("%w: backup target is the source", ErrExist)
	}

	srcDB, releaseSrc, err := m.Acquire(src, false)
	if err != nil {
		return DatabaseInfo{}, err
	}
	defer releaseSrc()

	exists, err := m.Exists(dst)
	if err != nil {
		return DatabaseInfo{}, err
	}
	if exists {
		return DatabaseInfo{}, fmt.Errorf("%w: %s", ErrExist, dst)
	}

	dstDB, releaseDst, err := m.Acquire(dst, true)
	if err != nil {
		return DatabaseInfo{}, err
	}
	defer releaseDst()

	if err := backupConns(ctx, dstDB, srcDB); err != nil {
		m.discard(dst)
		return DatabaseInfo{}, err
	}
	// The copy is written through the target's WAL. Fold it into the main
	// file so the backup file stands on its own.
	if _, err := dstDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		m.discard(dst)
		return DatabaseInfo{}, err
	}

	m.logger.Info("database backed up", "source", src, "backup", dst)
	return m.stat(dst)
}

func backupConns(ctx context.Context, dstDB, srcDB *sqlx.DB) error {
	srcConn, err := srcDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer srcConn.Close()

	dstConn, err := dstDB.Conn(ctx)
	if err != nil {
		return err
	}
	defer dstConn.Close()

	return dstConn.Raw(func(dstRaw any) error {
		return srcConn.Raw(func(srcRaw any) error {
			d, ok := dstRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected driver connection %T", dstRaw)
			}
			s, ok := srcRaw.(*sqlite3.SQLiteConn)
			if !ok {
				return fmt.Errorf("unexpected driver connection %T", srcRaw)
			}
			return copyDatabase(ctx, d, s)
		})
	})
}

func copyDatabase(ctx context.Context, dst, src *sqlite3.SQLiteConn) error {
	b, err := dst.Backup("main", src, "main")
	if err != nil {
		return err
	}

	for {
		done, err := b.Step(backupPages)
		if err != nil {
			return errors.Join(err, b.Close())
		}
		if done {
			return b.Finish()
		}

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), b.Close())
		case <-time.After(time.Millisecond):
		}
	}
}

// discard drops a half-written backup target.
func (m *Manager) discard(name string) {
	m.mu.Lock()
	if h, ok := m.handles[name]; ok {
		_ = h.db.Close()
		delete(m.handles, name)
	}
	m.mu.Unlock()

	p, err := m.Path(name)
	if err != nil {
		return
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(p + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to remove partial backup", "path", p+suffix, "error", err)
		}
	}
}

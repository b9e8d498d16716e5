package dbmanager

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// Extension is appended to database names that don't already carry it.
	Extension = ".db"

	driverName = "sqlite3"
)

var (
	ErrInvalidName = errors.New("invalid database name")
	ErrNotExist    = errors.New("database does not exist")
	ErrExist       = errors.New("database already exists")
	ErrClosed      = errors.New("database manager is closed")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type DatabaseInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Modified  time.Time `json:"modified"`
}

type Options struct {
	// BusyTimeout is how long SQLite waits on a locked file before failing.
	BusyTimeout time.Duration
	// IdleTimeout closes handles that have not been used for this long.
	// Zero keeps handles open until Close.
	IdleTimeout time.Duration
	Logger      *slog.Logger
}

type handle struct {
	db         *sqlx.DB
	path       string
	refs       int
	lastAccess time.Time
}

// Manager owns one connection pool per database file under rootDir. Pools are
// opened on first use and live until they go idle or the manager is closed.
type Manager struct {
	handles     map[string]*handle
	mu          sync.Mutex
	rootDir     string
	busyTimeout time.Duration
	idleTimeout time.Duration
	cleanupFreq time.Duration
	logger      *slog.Logger
	closed      bool
	done        chan struct{}
	wg          sync.WaitGroup
}

func New(rootDir string, opts Options) (*Manager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	mgr := &Manager{
		handles:     make(map[string]*handle),
		rootDir:     abs,
		busyTimeout: opts.BusyTimeout,
		idleTimeout: opts.IdleTimeout,
		cleanupFreq: cleanupFrequency(opts.IdleTimeout),
		logger:      logger.With("component", "dbmanager"),
		done:        make(chan struct{}),
	}

	if mgr.idleTimeout > 0 {
		mgr.wg.Add(1)
		go mgr.cleanupLoop()
	}
	return mgr, nil
}

func cleanupFrequency(idle time.Duration) time.Duration {
	freq := idle / 2
	if freq > time.Minute {
		freq = time.Minute
	}
	if freq < 10*time.Millisecond {
		freq = 10 * time.Millisecond
	}
	return freq
}

// RootDir is the directory every database file lives in.
func (m *Manager) RootDir() string {
	return m.rootDir
}

// NormalizeName validates a database name and appends Extension when it is
// missing. Names are plain file names: no separators and no parent refs.
func NormalizeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.HasSuffix(name, Extension) {
		name += Extension
	}
	return name, nil
}

// Path resolves a database name to its file path.
func (m *Manager) Path(name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.rootDir, name), nil
}

func (m *Manager) Exists(name string) (bool, error) {
	p, err := m.Path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Acquire returns the pool for the named database together with a release
// func that must be called once the caller is done with it. A handle is never
// closed by the idle cleanup while it is acquired. When create is false the
// database file must already exist.
func (m *Manager) Acquire(name string, create bool) (*sqlx.DB, func(), error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, nil, err
	}
	p := filepath.Join(m.rootDir, name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrClosed
	}

	h, ok := m.handles[name]
	if !ok {
		if !create {
			if _, err := os.Stat(p); err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, nil, fmt.Errorf("%w: %s", ErrNotExist, name)
				}
				return nil, nil, err
			}
		}

		db, err := sqlx.Open(driverName, m.dsn(p))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite db: %w", err)
		}
		h = &handle{db: db, path: p}
		m.handles[name] = h
		m.logger.Debug("opened database", "name", name, "path", p)
	}

	h.refs++
	h.lastAccess = time.Now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			h.refs--
			h.lastAccess = time.Now()
		})
	}
	return h.db, release, nil
}

// dsn builds a file URI for path. The path is escaped so a data directory
// holding URI metacharacters still resolves to the same file.
func (m *Manager) dsn(path string) string {
	params := []string{
		"_foreign_keys=on",
		"_journal_mode=WAL",
	}
	if m.busyTimeout > 0 {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", m.busyTimeout.Milliseconds()))
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(path),
		RawQuery: strings.Join(params, "&"),
	}
	return u.String()
}

// Create makes a new, empty database file. It fails with ErrExist if the file
// is already there.
func (m *Manager) Create(name string) (DatabaseInfo, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return DatabaseInfo{}, err
	}
	p := filepath.Join(m.rootDir, name)

	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return DatabaseInfo{}, fmt.Errorf("%w: %s", ErrExist, name)
		}
		return DatabaseInfo{}, err
	}
	if err := f.Close(); err != nil {
		return DatabaseInfo{}, err
	}

	// Touch the DB so the file carries a valid header.
	db, release, err := m.Acquire(name, false)
	if err != nil {
		return DatabaseInfo{}, err
	}
	defer release()
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		return DatabaseInfo{}, err
	}

	return m.stat(name)
}

func (m *Manager) stat(name string) (DatabaseInfo, error) {
	p := filepath.Join(m.rootDir, name)
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DatabaseInfo{}, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return DatabaseInfo{}, err
	}
	return DatabaseInfo{
		Name:      name,
		Path:      p,
		SizeBytes: st.Size(),
		Modified:  st.ModTime().UTC(),
	}, nil
}

// List reports every database file in the root directory, sorted by name.
func (m *Manager) List() ([]DatabaseInfo, error) {
	matches, err := filepath.Glob(filepath.Join(m.rootDir, "*"+Extension))
	if err != nil {
		return nil, err
	}

	dbs := make([]DatabaseInfo, 0, len(matches))
	for _, p := range matches {
		info, err := m.stat(filepath.Base(p))
		if err != nil {
			// Removed between the glob and the stat.
			if errors.Is(err, ErrNotExist) {
				continue
			}
			return nil, err
		}
		dbs = append(dbs, info)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i].Name < dbs[j].Name })
	return dbs, nil
}

// Close stops the cleanup loop and closes every open handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)

	var errs []error
	for name, h := range m.handles {
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
		delete(m.handles, name)
	}
	m.mu.Unlock()

	m.wg.Wait()
	return errors.Join(errs...)
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanupIdle()
		}
	}
}

func (m *Manager) cleanupIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for name, h := range m.handles {
		if h.refs > 0 || now.Sub(h.lastAccess) < m.idleTimeout {
			continue
		}
		if err := h.db.Close(); err != nil {
			m.logger.Warn("failed to close idle database", "name", name, "error", err)
		}
		delete(m.handles, name)
		m.logger.Debug("closed idle database", "name", name)
	}
}

// openHandles reports how many pools are currently open.
func (m *Manager) openHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

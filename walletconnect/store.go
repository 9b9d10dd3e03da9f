package walletconnect

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Schema creates the session table. Passed to sqlite.Open by the host.
const Schema = `
CREATE TABLE IF NOT EXISTS wallet_connect_sessions (
	topic TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	peer BLOB NOT NULL,
	namespaces BLOB NOT NULL,
	relay BLOB NOT NULL,
	created INTEGER NOT NULL,
	expiry INTEGER NOT NULL DEFAULT 0,
	subscribed INTEGER NOT NULL DEFAULT 0
);`

// Store is the durable session store shared by both protocol adapters.
// Reads are safe for concurrent use; writes are serialized by the manager's
// per-topic locks and sqlite's single writer connection.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Upsert inserts the session or replaces the record with the same topic.
func (s *Store) Upsert(session *Session) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
			return
		}
		_ = tx.Rollback()
	}()

	peer, err := json.Marshal(session.Peer)
	if err != nil {
		return err
	}
	namespaces, err := json.Marshal(session.Namespaces)
	if err != nil {
		return err
	}
	relay, err := json.Marshal(session.Relay)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO wallet_connect_sessions
		(topic, version, peer, namespaces, relay, created, expiry, subscribed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(session.Topic, string(session.Version), peer, namespaces,
		relay, session.Created.Unix(), session.Expiry, session.Subscribed)
	return err
}

// Get returns the session for a topic, or sql.ErrNoRows.
func (s *Store) Get(topic string) (*Session, error) {
	row := s.db.QueryRow(`SELECT topic, version, peer, namespaces, relay, created, expiry, subscribed
		FROM wallet_connect_sessions WHERE topic = ?`, topic)
	session, err := scanSession(row)
	if err == errBadRecord {
		// A record we cannot decode must not keep poisoning reads.
		s.logger.Warn("dropping undecodable session record", zap.String("topic", topic))
		_ = s.Delete(topic)
		return nil, sql.ErrNoRows
	}
	return session, err
}

// GetAll returns every stored session. Records that fail to decode are
// dropped and skipped rather than aborting the read.
func (s *Store) GetAll() ([]*Session, error) {
	rows, err := s.db.Query(`SELECT topic, version, peer, namespaces, relay, created, expiry, subscribed
		FROM wallet_connect_sessions ORDER BY created`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	var bad []string
	for rows.Next() {
		session, err := scanSession(rows)
		if err == errBadRecord {
			if session != nil {
				bad = append(bad, session.Topic)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, topic := range bad {
		s.logger.Warn("dropping undecodable session record", zap.String("topic", topic))
		_ = s.Delete(topic)
	}
	return sessions, nil
}

// GetByAccount returns sessions whose namespaces reference the address.
func (s *Store) GetByAccount(address string) ([]*Session, error) {
	sessions, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	var out []*Session
	for _, session := range sessions {
		if session.ReferencesAddress(address) {
			out = append(out, session)
		}
	}
	return out, nil
}

// Delete removes the session for a topic. Deleting a missing topic is not
// an error.
func (s *Store) Delete(topic string) error {
	_, err := s.db.Exec(`DELETE FROM wallet_connect_sessions WHERE topic = ?`, topic)
	return err
}

// Count returns the number of stored sessions.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM wallet_connect_sessions`).Scan(&count)
	return count, err
}

// SetSubscribed flips the push-notification registration flag.
func (s *Store) SetSubscribed(topic string, subscribed bool) error {
	_, err := s.db.Exec(`UPDATE wallet_connect_sessions SET subscribed = ? WHERE topic = ?`,
		subscribed, topic)
	return err
}

var errBadRecord = errors.New("undecodable session record")

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		session          Session
		version          string
		peer, namespaces []byte
		relay            []byte
		created          int64
	)
	err := row.Scan(&session.Topic, &version, &peer, &namespaces, &relay,
		&created, &session.Expiry, &session.Subscribed)
	if err != nil {
		return nil, err
	}

	session.Version = Version(version)
	session.Created = time.Unix(created, 0).UTC()
	if session.Version != Version1 && session.Version != Version2 {
		return &session, errBadRecord
	}
	if err := json.Unmarshal(peer, &session.Peer); err != nil {
		return &session, errBadRecord
	}
	if err := json.Unmarshal(namespaces, &session.Namespaces); err != nil {
		return &session, errBadRecord
	}
	if err := json.Unmarshal(relay, &session.Relay); err != nil {
		return &session, errBadRecord
	}
	return &session, nil
}

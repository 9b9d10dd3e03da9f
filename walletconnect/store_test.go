package walletconnect

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/algoline/wallet-core/sqlite"
)

func newTestStore(t *testing.T) *Store {
	db, err := sqlite.OpenInMemory(Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, nil)
}

func testSession(topic string, version Version) *Session {
	return &Session{
		Topic:   topic,
		Version: version,
		Peer:    Metadata{Name: "Test dApp", URL: "https://dapp.example.org"},
		Namespaces: map[string]Namespace{
			"algorand": {
				Accounts: []string{"algorand:wGHE2Pwdvd7S12BL5FaOP20EGYesN73k:ADDR1"},
				Methods:  []string{"algo_signTxn"},
			},
		},
		Relay:   RelayInfo{SymKey: "aa", ClientID: "client-1"},
		Created: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStoreUpsertAndGet(t *testing.T) {
	store := newTestStore(t)

	session := testSession("topic-1", Version2)
	session.Expiry = time.Now().Add(time.Hour).Unix()
	session.Subscribed = true
	require.NoError(t, store.Upsert(session))

	got, err := store.Get("topic-1")
	require.NoError(t, err)
	require.Equal(t, session.Topic, got.Topic)
	require.Equal(t, session.Version, got.Version)
	require.Equal(t, session.Peer, got.Peer)
	require.Equal(t, session.Namespaces, got.Namespaces)
	require.Equal(t, session.Relay, got.Relay)
	require.Equal(t, session.Expiry, got.Expiry)
	require.True(t, got.Subscribed)
	// Transport state never persists.
	require.False(t, got.Connected)

	_, err = store.Get("missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStoreUpsertReplacesSameTopic(t *testing.T) {
	store := newTestStore(t)

	first := testSession("topic-1", Version2)
	require.NoError(t, store.Upsert(first))
	require.NoError(t, store.Upsert(testSession("topic-2", Version1)))

	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// A second record for the same topic updates in place, it never
	// duplicates.
	updated := testSession("topic-1", Version2)
	updated.Peer.Name = "Renamed dApp"
	require.NoError(t, store.Upsert(updated))

	count, err = store.Count()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	got, err := store.Get("topic-1")
	require.NoError(t, err)
	require.Equal(t, "Renamed dApp", got.Peer.Name)
}

func TestStoreGetAll(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Upsert(testSession("topic-1", Version1)))
	require.NoError(t, store.Upsert(testSession("topic-2", Version2)))

	sessions, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

func TestStoreGetByAccount(t *testing.T) {
	store := newTestStore(t)

	session := testSession("topic-1", Version2)
	require.NoError(t, store.Upsert(session))

	other := testSession("topic-2", Version2)
	other.Namespaces = map[string]Namespace{
		"algorand": {Accounts: []string{"algorand:wGHE2Pwdvd7S12BL5FaOP20EGYesN73k:ADDR2"}},
	}
	require.NoError(t, store.Upsert(other))

	sessions, err := store.GetByAccount("ADDR1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "topic-1", sessions[0].Topic)

	sessions, err = store.GetByAccount("ADDR3")
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Upsert(testSession("topic-1", Version1)))

	require.NoError(t, store.Delete("topic-1"))
	_, err := store.Get("topic-1")
	require.ErrorIs(t, err, sql.ErrNoRows)

	// Deleting a missing topic is not an error.
	require.NoError(t, store.Delete("topic-1"))
}

func TestStoreSetSubscribed(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Upsert(testSession("topic-1", Version1)))

	require.NoError(t, store.SetSubscribed("topic-1", true))
	got, err := store.Get("topic-1")
	require.NoError(t, err)
	require.True(t, got.Subscribed)
}

func TestStoreDropsUndecodableRecords(t *testing.T) {
	db, err := sqlite.OpenInMemory(Schema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewStore(db, nil)

	require.NoError(t, store.Upsert(testSession("good", Version2)))
	_, err = db.Exec(`INSERT INTO wallet_connect_sessions
		(topic, version, peer, namespaces, relay, created, expiry, subscribed)
		VALUES ('bad', '9', X'00', X'00', X'00', 0, 0, 0)`)
	require.NoError(t, err)

	sessions, err := store.GetAll()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "good", sessions[0].Topic)

	// The bad record was removed, not just skipped.
	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = db.Exec(`INSERT INTO wallet_connect_sessions
		(topic, version, peer, namespaces, relay, created, expiry, subscribed)
		VALUES ('bad-json', '2', X'00', X'00', X'00', 0, 0, 0)`)
	require.NoError(t, err)

	_, err = store.Get("bad-json")
	require.ErrorIs(t, err, sql.ErrNoRows)
	count, err = store.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

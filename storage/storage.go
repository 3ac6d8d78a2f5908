// storage package contains the off-chain records of the relay: polls, users
// and the log of confirmed admissions. The default implementation is a
// prefixed key-value store where every record is stored as a cbor encoded
// artifact. The following prefixes are used:
//   - 'p/' for polls
//   - 'u/' for users
//   - 'a/' for admission records
//
// A relational implementation of the same Store interface lives in the
// sqldb subpackage.
package storage

import (
	"sync"

	"github.com/vocdoni/selfpoll-relay/types"
	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	pollPrefix      = []byte("p/")
	userPrefix      = []byte("u/")
	admissionPrefix = []byte("a/")
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = types.ErrNotFound

// Store is the CRUD contract of the poll lifecycle store. Every write is a
// single atomic operation on the underlying database.
type Store interface {
	CreatePoll(req *types.NewPoll) (*types.Poll, error)
	ListPolls() ([]*types.Poll, error)
	Poll(id string) (*types.Poll, error)
	UpdatePoll(id string, req *types.PollUpdate) (*types.Poll, error)
	DeletePoll(id string) error

	CreateUser(req *types.NewUser) (*types.User, error)
	User(id string) (*types.User, error)
	UserByWallet(address string) (*types.User, error)
	UpdateUser(id string, req *types.UserUpdate) (*types.User, error)
	SetSelfVerified(address string, verified bool) (*types.User, error)
	DeleteUser(id string) error

	AddAdmission(a *Admission) error
	Admissions() ([]*Admission, error)

	Close()
}

// Storage is the key-value implementation of Store.
type Storage struct {
	db db.Database
	// globalLock serializes read-modify-write operations.
	globalLock sync.Mutex
}

var _ Store = (*Storage)(nil)

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	s.db.Close()
}

// Package sqldb implements the relay store on top of a relational database
// using gorm. It keeps the same validation rules and error classification as
// the key-value store.
package sqldb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/selfpoll-relay/log"
	"github.com/vocdoni/selfpoll-relay/storage"
	"github.com/vocdoni/selfpoll-relay/types"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type pollRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Title       string `gorm:"not null"`
	Description string `gorm:"not null"`
	Options     datatypes.JSONSlice[types.Option]
	Creator     string    `gorm:"size:36;index;not null"`
	EndDate     time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index"`
}

func (pollRow) TableName() string { return "polls" }

type userRow struct {
	ID            string    `gorm:"primaryKey;size:36"`
	WalletAddress string    `gorm:"index;not null"`
	PassportID    string    `gorm:"not null"`
	SelfVerified  bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"index"`
}

func (userRow) TableName() string { return "users" }

type admissionRow struct {
	Key            string `gorm:"primaryKey"`
	TxHash         string `gorm:"primaryKey"`
	Nullifier      string
	UserIdentifier string
	Action         string
	Target         string
	Time           time.Time `gorm:"index"`
}

func (admissionRow) TableName() string { return "admissions" }

// DB is the relational implementation of storage.Store.
type DB struct {
	db *gorm.DB
}

var _ storage.Store = (*DB)(nil)

// Open connects to the postgres database identified by dsn and migrates the
// schema.
func Open(dsn string) (*DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return New(gdb)
}

// New wraps an already opened gorm connection and migrates the schema.
func New(gdb *gorm.DB) (*DB, error) {
	if err := gdb.AutoMigrate(&userRow{}, &pollRow{}, &admissionRow{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	log.Infow("sql storage ready", "dialect", gdb.Dialector.Name())
	return &DB{db: gdb}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() {
	sqlDB, err := d.db.DB()
	if err != nil {
		log.Warnw("could not get sql connection", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warnw("could not close sql connection", "error", err)
	}
}

func serverError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrServerError, op, err)
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return serverError(op, err)
}

func (r *pollRow) toPoll() *types.Poll {
	return &types.Poll{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Options:     []types.Option(r.Options),
		Creator:     r.Creator,
		EndDate:     r.EndDate.UTC(),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

func pollToRow(p *types.Poll) *pollRow {
	return &pollRow{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Options:     datatypes.JSONSlice[types.Option](p.Options),
		Creator:     p.Creator,
		EndDate:     p.EndDate,
		CreatedAt:   p.CreatedAt,
	}
}

func (r *userRow) toUser() *types.User {
	return &types.User{
		ID:            r.ID,
		WalletAddress: r.WalletAddress,
		PassportID:    r.PassportID,
		SelfVerified:  r.SelfVerified,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

// CreatePoll implements storage.Store.
func (d *DB) CreatePoll(req *types.NewPoll) (*types.Poll, error) {
	p, err := storage.PollFromRequest(req, time.Now())
	if err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	err = d.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("id = ?", p.Creator).Count(&count).Error; err != nil {
			return serverError("lookup creator", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", types.ErrCreatorNotFound, p.Creator)
		}
		if err := tx.Create(pollToRow(p)).Error; err != nil {
			return serverError("insert poll", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPolls implements storage.Store.
func (d *DB) ListPolls() ([]*types.Poll, error) {
	var rows []pollRow
	if err := d.db.Order("created_at desc").Order("id").Find(&rows).Error; err != nil {
		return nil, serverError("list polls", err)
	}
	polls := make([]*types.Poll, 0, len(rows))
	for i := range rows {
		polls = append(polls, rows[i].toPoll())
	}
	return polls, nil
}

// Poll implements storage.Store.
func (d *DB) Poll(id string) (*types.Poll, error) {
	var row pollRow
	if err := d.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("get poll", err)
	}
	return row.toPoll(), nil
}

// UpdatePoll implements storage.Store.
func (d *DB) UpdatePoll(id string, req *types.PollUpdate) (*types.Poll, error) {
	var updated *types.Poll
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var row pollRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFoundOr("get poll", err)
		}
		p, err := storage.ApplyPollUpdate(row.toPoll(), req)
		if err != nil {
			return err
		}
		if err := tx.Save(pollToRow(p)).Error; err != nil {
			return serverError("update poll", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePoll implements storage.Store.
func (d *DB) DeletePoll(id string) error {
	res := d.db.Delete(&pollRow{}, "id = ?", id)
	if res.Error != nil {
		return serverError("delete poll", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateUser implements storage.Store.
func (d *DB) CreateUser(req *types.NewUser) (*types.User, error) {
	u, err := storage.UserFromRequest(req, time.Now())
	if err != nil {
		return nil, err
	}
	u.ID = uuid.NewString()
	row := &userRow{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		PassportID:    u.PassportID,
		SelfVerified:  u.SelfVerified,
		CreatedAt:     u.CreatedAt,
	}
	if err := d.db.Create(row).Error; err != nil {
		return nil, serverError("insert user", err)
	}
	return u, nil
}

// User implements storage.Store.
func (d *DB) User(id string) (*types.User, error) {
	var row userRow
	if err := d.db.First(&row, "id = ?", id).Error; err != nil {
		return nil, notFoundOr("get user", err)
	}
	return row.toUser(), nil
}

// UserByWallet implements storage.Store.
func (d *DB) UserByWallet(address string) (*types.User, error) {
	var row userRow
	err := d.db.Where("lower(wallet_address) = ?", strings.ToLower(address)).
		Order("created_at").First(&row).Error
	if err != nil {
		return nil, notFoundOr("get user by wallet", err)
	}
	return row.toUser(), nil
}

// UpdateUser implements storage.Store.
func (d *DB) UpdateUser(id string, req *types.UserUpdate) (*types.User, error) {
	var updated *types.User
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var row userRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFoundOr("get user", err)
		}
		u, err := storage.ApplyUserUpdate(row.toUser(), req)
		if err != nil {
			return err
		}
		err = tx.Model(&userRow{}).Where("id = ?", id).Updates(map[string]any{
			"wallet_address": u.WalletAddress,
			"passport_id":    u.PassportID,
			"self_verified":  u.SelfVerified,
		}).Error
		if err != nil {
			return serverError("update user", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetSelfVerified implements storage.Store.
func (d *DB) SetSelfVerified(address string, verified bool) (*types.User, error) {
	u, err := d.UserByWallet(address)
	if err != nil {
		return nil, err
	}
	return d.UpdateUser(u.ID, &types.UserUpdate{SelfVerified: &verified})
}

// DeleteUser implements storage.Store.
func (d *DB) DeleteUser(id string) error {
	res := d.db.Delete(&userRow{}, "id = ?", id)
	if res.Error != nil {
		return serverError("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AddAdmission implements storage.Store.
func (d *DB) AddAdmission(a *storage.Admission) error {
	if a == nil || a.Key == "" || a.TxHash == "" {
		return fmt.Errorf("%w: admission: key and tx hash are required", types.ErrInvalidRequest)
	}
	if a.Time.IsZero() {
		a.Time = time.Now().UTC().Truncate(storage.TimePrecision)
	}
	row := &admissionRow{
		Key:            a.Key,
		TxHash:         a.TxHash,
		UserIdentifier: a.UserIdentifier,
		Action:         a.Action,
		Target:         a.Target,
		Time:           a.Time,
	}
	if a.Nullifier != nil {
		row.Nullifier = a.Nullifier.String()
	}
	if err := d.db.Save(row).Error; err != nil {
		return serverError("insert admission", err)
	}
	return nil
}

// Admissions implements storage.Store.
func (d *DB) Admissions() ([]*storage.Admission, error) {
	var rows []admissionRow
	if err := d.db.Order("time").Find(&rows).Error; err != nil {
		return nil, serverError("list admissions", err)
	}
	list := make([]*storage.Admission, 0, len(rows))
	for _, r := range rows {
		a := &storage.Admission{
			Key:            r.Key,
			UserIdentifier: r.UserIdentifier,
			TxHash:         r.TxHash,
			Action:         r.Action,
			Target:         r.Target,
			Time:           r.Time.UTC(),
		}
		if r.Nullifier != "" {
			n := new(types.BigInt)
			if err := n.UnmarshalText([]byte(r.Nullifier)); err != nil {
				return nil, serverError("decode nullifier", err)
			}
			a.Nullifier = n
		}
		list = append(list, a)
	}
	return list, nil
}

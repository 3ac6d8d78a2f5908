package types

import (
	"fmt"
	"time"
)

// Option is one of the choices of a poll.
type Option struct {
	Text        string `json:"text"                  cbor:"0,keyasint,omitempty"`
	Description string `json:"description,omitempty" cbor:"1,keyasint,omitempty"`
}

// Poll is the off-chain record of a poll.
type Poll struct {
	ID          string    `json:"id"          cbor:"0,keyasint,omitempty"`
	Title       string    `json:"title"       cbor:"1,keyasint,omitempty"`
	Description string    `json:"description" cbor:"2,keyasint,omitempty"`
	Options     []Option  `json:"options"     cbor:"3,keyasint,omitempty"`
	Creator     string    `json:"creator"     cbor:"4,keyasint,omitempty"`
	EndDate     time.Time `json:"end_date"    cbor:"5,keyasint,omitempty"`
	CreatedAt   time.Time `json:"created_at"  cbor:"6,keyasint,omitempty"`
}

// String returns a short human readable representation of the poll.
func (p *Poll) String() string {
	return fmt.Sprintf("id:%s title:%q options:%d end:%s", p.ID, p.Title, len(p.Options), p.EndDate.Format(time.RFC3339))
}

// NewPoll holds the fields provided by the client to create a poll. EndDate
// is the raw client value; it is parsed by the store.
type NewPoll struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []Option `json:"options"`
	Creator     string   `json:"creator"`
	EndDate     string   `json:"end_date,omitempty"`
}

// PollUpdate holds the mutable fields of a poll.
type PollUpdate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []Option `json:"options"`
}

// User is the off-chain record of a verified identity.
type User struct {
	ID            string    `json:"id"             cbor:"0,keyasint,omitempty"`
	WalletAddress string    `json:"wallet_address" cbor:"1,keyasint,omitempty"`
	PassportID    string    `json:"passport_id"    cbor:"2,keyasint,omitempty"`
	SelfVerified  bool      `json:"self_verified"  cbor:"3,keyasint,omitempty"`
	CreatedAt     time.Time `json:"created_at"     cbor:"4,keyasint,omitempty"`
}

// NewUser holds the fields provided by the client to create a user.
type NewUser struct {
	WalletAddress string `json:"wallet_address"`
	PassportID    string `json:"passport_id"`
	SelfVerified  bool   `json:"self_verified,omitempty"`
}

// UserUpdate is the restricted set of user fields that can be modified. Nil
// fields are left untouched.
type UserUpdate struct {
	WalletAddress *string `json:"wallet_address,omitempty"`
	PassportID    *string `json:"passport_id,omitempty"`
	SelfVerified  *bool   `json:"self_verified,omitempty"`
}

// Empty returns true if the update does not modify any field.
func (u *UserUpdate) Empty() bool {
	return u.WalletAddress == nil && u.PassportID == nil && u.SelfVerified == nil
}

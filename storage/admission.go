package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/vocdoni/selfpoll-relay/types"
)

// Admission actions.
const (
	ActionVerify     = "verify"
	ActionCreateVote = "create_voting_contract"
	ActionVote       = "vote"
)

// Admission is the audit record of a confirmed on-chain admission. The
// contract remains the source of truth for uniqueness; the record only
// reflects what the relay observed.
type Admission struct {
	Key            string        `json:"key" cbor:"0,keyasint,omitempty"`
	Nullifier      *types.BigInt `json:"nullifier" cbor:"1,keyasint,omitempty"`
	UserIdentifier string        `json:"userIdentifier" cbor:"2,keyasint,omitempty"`
	TxHash         string        `json:"txHash" cbor:"3,keyasint,omitempty"`
	Action         string        `json:"action" cbor:"4,keyasint,omitempty"`
	Target         string        `json:"target,omitempty" cbor:"5,keyasint,omitempty"`
	Time           time.Time     `json:"time" cbor:"6,keyasint,omitempty"`
}

// AddAdmission stores the admission record keyed by identity key and tx
// hash, so a new confirmation never overwrites a previous one.
func (s *Storage) AddAdmission(a *Admission) error {
	if a == nil || a.Key == "" || a.TxHash == "" {
		return invalidField("admission: key and tx hash are required")
	}
	if a.Time.IsZero() {
		a.Time = time.Now().UTC().Truncate(TimePrecision)
	}
	if err := s.setArtifact(admissionPrefix, []byte(a.Key+"/"+a.TxHash), a); err != nil {
		return fmt.Errorf("%w: store admission: %v", types.ErrServerError, err)
	}
	return nil
}

// Admissions returns every admission record, oldest first.
func (s *Storage) Admissions() ([]*Admission, error) {
	list := []*Admission{}
	var decodeErr error
	if err := s.iterateArtifacts(admissionPrefix, func(_, v []byte) bool {
		a := &Admission{}
		if err := decodeArtifact(v, a); err != nil {
			decodeErr = fmt.Errorf("decode admission: %w", err)
			return false
		}
		list = append(list, a)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Time.Before(list[j].Time) })
	return list, nil
}

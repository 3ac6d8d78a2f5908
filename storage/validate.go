package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/vocdoni/selfpoll-relay/types"
)

const (
	// MinPollOptions is the minimum number of options of a poll.
	MinPollOptions = 2
	// DefaultPollDuration is added to the creation time when no end date is
	// provided.
	DefaultPollDuration = 24 * time.Hour
	// TimePrecision is the resolution of stored timestamps. Both backends
	// round trip it.
	TimePrecision = time.Microsecond
)

// endDateLayouts are the accepted end date formats, tried in order.
var endDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func invalidField(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// ParseEndDate parses a client provided end date. An empty value returns the
// zero time.
func ParseEndDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range endDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Truncate(TimePrecision), nil
		}
	}
	return time.Time{}, invalidField("end_date: invalid format %q", value)
}

// validateOptions checks the option list and returns a trimmed copy.
func validateOptions(options []types.Option) ([]types.Option, error) {
	if len(options) < MinPollOptions {
		return nil, invalidField("options: at least %d options are required", MinPollOptions)
	}
	res := make([]types.Option, len(options))
	for i, o := range options {
		text := strings.TrimSpace(o.Text)
		if text == "" {
			return nil, invalidField("options: option %d must have a non-empty text", i)
		}
		res[i] = types.Option{Text: text, Description: strings.TrimSpace(o.Description)}
	}
	return res, nil
}

// validateContent checks title, description and options, the fields shared
// by creation and update.
func validateContent(title, description string, options []types.Option) (string, string, []types.Option, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", nil, invalidField("title is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", "", nil, invalidField("description is required")
	}
	opts, err := validateOptions(options)
	if err != nil {
		return "", "", nil, err
	}
	return title, description, opts, nil
}

// PollFromRequest validates a creation request and builds the poll record
// (without id) that should be persisted. The creator existence check is left
// to the store. now is the creation time.
func PollFromRequest(req *types.NewPoll, now time.Time) (*types.Poll, error) {
	if req == nil {
		return nil, invalidField("empty body")
	}
	title, description, options, err := validateContent(req.Title, req.Description, req.Options)
	if err != nil {
		return nil, err
	}
	creator := strings.TrimSpace(req.Creator)
	if creator == "" {
		return nil, invalidField("creator is required")
	}
	now = now.UTC().Truncate(TimePrecision)
	endDate, err := ParseEndDate(req.EndDate)
	if err != nil {
		return nil, err
	}
	if endDate.IsZero() {
		endDate = now.Add(DefaultPollDuration)
	} else if !endDate.After(now) {
		return nil, invalidField("end_date: must be in the future")
	}
	return &types.Poll{
		Title:       title,
		Description: description,
		Options:     options,
		Creator:     creator,
		EndDate:     endDate,
		CreatedAt:   now,
	}, nil
}

// ApplyPollUpdate validates the update and applies it over a copy of p.
func ApplyPollUpdate(p *types.Poll, req *types.PollUpdate) (*types.Poll, error) {
	if req == nil {
		return nil, invalidField("empty body")
	}
	title, description, options, err := validateContent(req.Title, req.Description, req.Options)
	if err != nil {
		return nil, err
	}
	updated := *p
	updated.Title = title
	updated.Description = description
	updated.Options = options
	return &updated, nil
}

// UserFromRequest validates a user creation request.
func UserFromRequest(req *types.NewUser, now time.Time) (*types.User, error) {
	if req == nil {
		return nil, invalidField("empty body")
	}
	wallet := strings.TrimSpace(req.WalletAddress)
	if wallet == "" {
		return nil, invalidField("wallet_address is required")
	}
	passport := strings.TrimSpace(req.PassportID)
	if passport == "" {
		return nil, invalidField("passport_id is required")
	}
	return &types.User{
		WalletAddress: wallet,
		PassportID:    passport,
		SelfVerified:  req.SelfVerified,
		CreatedAt:     now.UTC().Truncate(TimePrecision),
	}, nil
}

// ApplyUserUpdate validates the restricted update and applies it over a copy
// of u.
func ApplyUserUpdate(u *types.User, req *types.UserUpdate) (*types.User, error) {
	if req == nil || req.Empty() {
		return nil, invalidField("no fields to update")
	}
	updated := *u
	if req.WalletAddress != nil {
		wallet := strings.TrimSpace(*req.WalletAddress)
		if wallet == "" {
			return nil, invalidField("wallet_address cannot be empty")
		}
		updated.WalletAddress = wallet
	}
	if req.PassportID != nil {
		passport := strings.TrimSpace(*req.PassportID)
		if passport == "" {
			return nil, invalidField("passport_id cannot be empty")
		}
		updated.PassportID = passport
	}
	if req.SelfVerified != nil {
		updated.SelfVerified = *req.SelfVerified
	}
	return &updated, nil
}

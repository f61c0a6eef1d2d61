package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/clairecatohanson/rock-of-ages-api/internal/domain"
	"github.com/clairecatohanson/rock-of-ages-api/internal/dto"
	"github.com/clairecatohanson/rock-of-ages-api/internal/search"
	"github.com/clairecatohanson/rock-of-ages-api/internal/sse"
	"github.com/clairecatohanson/rock-of-ages-api/internal/store"
	"github.com/clairecatohanson/rock-of-ages-api/internal/validation"
)

// Messages shared with clients.
const (
	MsgRockNotFound = "Rock matching query does not exist."
	MsgTypeNotFound = "Type matching query does not exist."
	MsgNotOwner     = "You do not own that rock"
)

// RockSearcher finds rock ids for a full-text query.
type RockSearcher interface {
	Search(ctx context.Context, params search.SearchParams) ([]int64, error)
}

// CreateRockInput is a decoded and normalized create payload.
type CreateRockInput struct {
	TypeID int64   `json:"typeId" validate:"gt=0"`
	Name   string  `json:"name" validate:"notblank,max=155"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// RockService implements create, list, get, destroy and search over rocks.
// Every operation takes the authenticated user explicitly and fails only
// with a *RockError.
type RockService struct {
	store     store.Store
	indexer   store.SearchIndexer
	searcher  RockSearcher
	events    store.EventEmitter
	validator *validation.Validator
	logger    *slog.Logger
}

// NewRockService creates a rock service. A nil indexer or events disables
// that side effect; a nil searcher makes Search scan the store instead of
// the index.
func NewRockService(
	st store.Store,
	indexer store.SearchIndexer,
	searcher RockSearcher,
	events store.EventEmitter,
	validator *validation.Validator,
	logger *slog.Logger,
) *RockService {
	if indexer == nil {
		indexer = store.NoopSearchIndexer{}
	}
	if events == nil {
		events = store.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RockService{
		store:     st,
		indexer:   indexer,
		searcher:  searcher,
		events:    events,
		validator: validator,
		logger:    logger,
	}
}

// Create decodes a raw request body, resolves its type and persists a rock
// owned by user. Every failure, including an unknown type or a failed
// write, is a RockErrInvalid whose message is the reason.
func (s *RockService) Create(ctx context.Context, body []byte, user *domain.User) (*domain.Rock, error) {
	if user == nil {
		return nil, invalidRock("authenticated user required")
	}

	input, err := DecodeCreateRock(body)
	if err != nil {
		if cause := errors.Unwrap(err); cause != nil {
			s.logger.Debug("rejected rock body", "user_id", user.ID, "error", cause)
		}
		return nil, invalidRock("%s", err.Error())
	}
	if err := s.validator.Validate(input); err != nil {
		return nil, invalidRock("%s", validation.Summary(err))
	}

	rockType, err := s.store.GetType(ctx, input.TypeID)
	if err != nil {
		if errors.Is(err, store.ErrTypeNotFound) {
			return nil, invalidRock(MsgTypeNotFound)
		}
		return nil, invalidRock("%s", err.Error())
	}

	rock := &domain.Rock{
		Name:      input.Name,
		Weight:    input.Weight,
		TypeID:    rockType.ID,
		UserID:    user.ID,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateRock(ctx, rock); err != nil {
		if errors.Is(err, store.ErrTypeNotFound) {
			return nil, invalidRock(MsgTypeNotFound)
		}
		return nil, invalidRock("%s", err.Error())
	}
	rock.Type = rockType
	rock.Owner = user

	if err := s.indexer.IndexRock(ctx, rock); err != nil {
		s.logger.Warn("failed to index rock", "rock_id", rock.ID, "error", err)
	}
	s.events.Emit(sse.NewRockCreatedEvent(dto.NewRock(rock)))

	s.logger.Info("rock created",
		"rock_id", rock.ID,
		"type_id", rock.TypeID,
		"user_id", user.ID,
	)
	return rock, nil
}

// List returns rocks in ascending id order. owner "current" restricts the
// result to user's rocks; any other value returns every rock.
func (s *RockService) List(ctx context.Context, owner string, user *domain.User) ([]*domain.Rock, error) {
	filter := domain.NewRockFilter(owner, userID(user))

	rocks, err := s.store.ListRocks(ctx, filter)
	if err != nil {
		return nil, rockServerError("list rocks", err)
	}
	if rocks == nil {
		rocks = []*domain.Rock{}
	}
	return rocks, nil
}

// Get returns the rock named by rawID. A rawID that is not a positive
// integer names no rock.
func (s *RockService) Get(ctx context.Context, rawID string, _ *domain.User) (*domain.Rock, error) {
	rockID, ok := ParseRockID(rawID)
	if !ok {
		return nil, rockNotFound(MsgRockNotFound)
	}

	rock, err := s.store.GetRock(ctx, rockID)
	if err != nil {
		if errors.Is(err, store.ErrRockNotFound) {
			return nil, rockNotFound(MsgRockNotFound)
		}
		return nil, rockServerError("get rock", err)
	}
	return rock, nil
}

// Destroy deletes the rock named by rawID if user owns it.
func (s *RockService) Destroy(ctx context.Context, rawID string, user *domain.User) error {
	rock, err := s.Get(ctx, rawID, user)
	if err != nil {
		return err
	}

	if !rock.IsOwnedBy(userID(user)) {
		s.logger.Warn("refused to delete rock owned by another user",
			"rock_id", rock.ID,
			"user_id", userID(user),
		)
		return &RockError{Kind: RockErrForbidden, Message: MsgNotOwner}
	}

	if err := s.store.DeleteRock(ctx, rock.ID); err != nil {
		if errors.Is(err, store.ErrRockNotFound) {
			return rockNotFound(MsgRockNotFound)
		}
		return rockServerError("delete rock", err)
	}

	if err := s.indexer.DeleteRock(ctx, rock.ID); err != nil {
		s.logger.Warn("failed to remove rock from index", "rock_id", rock.ID, "error", err)
	}
	s.events.Emit(sse.NewRockDeletedEvent(rock.ID, rock.UserID))

	s.logger.Info("rock deleted", "rock_id", rock.ID, "user_id", rock.UserID)
	return nil
}

// Search runs a full-text query over rock names, type labels and owner
// names. owner filters like List. A blank query returns no rocks.
func (s *RockService) Search(ctx context.Context, query, owner string, limit int, user *domain.User) ([]*domain.Rock, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Rock{}, nil
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	limit = min(limit, search.MaxLimit)

	filter := domain.NewRockFilter(owner, userID(user))

	if s.searcher == nil {
		return s.scan(ctx, query, filter, limit)
	}

	ids, err := s.searcher.Search(ctx, search.SearchParams{
		Query:   query,
		OwnerID: filter.OwnerID,
		Limit:   limit,
	})
	if err != nil {
		return nil, rockServerError("search rocks", err)
	}

	rocks, err := s.store.GetRocksByIDs(ctx, ids)
	if err != nil {
		return nil, rockServerError("load search results", err)
	}
	if rocks == nil {
		rocks = []*domain.Rock{}
	}
	return rocks, nil
}

// scan is the Search fallback when no index is configured: a
// case-insensitive substring match in id order.
func (s *RockService) scan(ctx context.Context, query string, filter domain.RockFilter, limit int) ([]*domain.Rock, error) {
	rocks, err := s.store.ListRocks(ctx, filter)
	if err != nil {
		return nil, rockServerError("search rocks", err)
	}

	needle := strings.ToLower(query)
	matches := []*domain.Rock{}
	for _, r := range rocks {
		if len(matches) == limit {
			break
		}
		if rockMatches(r, needle) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

func rockMatches(r *domain.Rock, needle string) bool {
	haystack := []string{r.Name}
	if r.Type != nil {
		haystack = append(haystack, r.Type.Label)
	}
	if r.Owner != nil {
		haystack = append(haystack, r.Owner.FullName())
	}
	for _, h := range haystack {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// ParseRockID parses a path id. Only positive base-10 integers are ids.
func ParseRockID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// DecodeCreateRock decodes a create body. typeId may be a JSON integer or a
// numeric string; weight may be a JSON number or a numeric string and must
// be finite. Range and length rules are left to validation.
func DecodeCreateRock(body []byte) (CreateRockInput, error) {
	var raw struct {
		TypeID json.RawMessage `json:"typeId"`
		Name   json.RawMessage `json:"name"`
		Weight json.RawMessage `json:"weight"`
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return CreateRockInput{}, errors.New("request body is required")
		}
		return CreateRockInput{}, &bodyError{msg: "request body must be a JSON object", cause: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return CreateRockInput{}, errors.New("request body must contain a single JSON object")
	}

	var input CreateRockInput
	var err error

	if input.TypeID, err = parseIntField("typeId", raw.TypeID); err != nil {
		return CreateRockInput{}, err
	}
	if input.Name, err = parseStringField("name", raw.Name); err != nil {
		return CreateRockInput{}, err
	}
	if input.Weight, err = parseNumberField("weight", raw.Weight); err != nil {
		return CreateRockInput{}, err
	}
	return input, nil
}

// bodyError keeps the decoder's message out of client-facing reasons.
type bodyError struct {
	msg   string
	cause error
}

func (e *bodyError) Error() string { return e.msg }
func (e *bodyError) Unwrap() error { return e.cause }

func isMissing(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// numericText returns the text of a JSON number or numeric string.
func numericText(raw json.RawMessage) (string, bool) {
	if raw[0] != '"' {
		return string(raw), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func parseIntField(name string, raw json.RawMessage) (int64, error) {
	if isMissing(raw) {
		return 0, fmt.Errorf("%s is required", name)
	}
	text, ok := numericText(raw)
	if !ok {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	// Integral floats such as 1.0 or 2e0 name the same row.
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return int64(f), nil
}

func parseNumberField(name string, raw json.RawMessage) (float64, error) {
	if isMissing(raw) {
		return 0, fmt.Errorf("%s is required", name)
	}
	text, ok := numericText(raw)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a finite number", name)
	}
	return v, nil
}

func parseStringField(name string, raw json.RawMessage) (string, error) {
	if isMissing(raw) {
		return "", fmt.Errorf("%s is required", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return s, nil
}

func userID(user *domain.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}

package application

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// ParticipantRepository captures the persistence operations needed by the
// participant service.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, participant Participant, passwordHash string) (Participant, error)
	GetParticipant(ctx context.Context, id string) (Participant, error)
	UpdateParticipant(ctx context.Context, participant Participant, passwordHash string) (Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	ListParticipants(ctx context.Context) ([]Participant, error)
	GetParticipantPasswordHash(ctx context.Context, id string) (string, error)
}

// ParticipantService orchestrates validation, authorization, and persistence
// for the participant directory.
type ParticipantService struct {
	participants ParticipantRepository
	hashPassword func(password string) (string, error)
	idGenerator  func() string
	now          func() time.Time
}

// NewParticipantService wires dependencies for the participant service.
func NewParticipantService(participants ParticipantRepository, hashPassword func(string) (string, error), idGenerator func() string, now func() time.Time) *ParticipantService {
	if hashPassword == nil {
		hashPassword = func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		}
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ParticipantService{
		participants: participants,
		hashPassword: hashPassword,
		idGenerator:  idGenerator,
		now:          now,
	}
}

// CreateParticipant validates input and persists a new participant for administrators.
func (s *ParticipantService) CreateParticipant(ctx context.Context, params CreateParticipantParams) (Participant, error) {
	if s == nil {
		return Participant{}, fmt.Errorf("ParticipantService is nil")
	}
	if !params.Principal.IsAdmin {
		return Participant{}, ErrUnauthorized
	}

	normalized := normalizeParticipantInput(params.Input)
	vErr := validateParticipantInput(normalized, true)
	if vErr.HasErrors() {
		return Participant{}, vErr
	}

	passwordHash, err := s.hashPassword(normalized.Password)
	if err != nil {
		return Participant{}, err
	}

	participant := Participant{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		IsAdmin:     normalized.IsAdmin,
		CreatedAt:   s.now(),
	}
	participant.UpdatedAt = participant.CreatedAt

	if s.participants == nil {
		return participant, nil
	}

	persisted, err := s.participants.CreateParticipant(ctx, participant, passwordHash)
	if err != nil {
		return Participant{}, mapSessionRepoError(err)
	}

	return persisted, nil
}

// UpdateParticipant validates input and updates an existing participant for
// administrators. An empty password keeps the current one.
func (s *ParticipantService) UpdateParticipant(ctx context.Context, params UpdateParticipantParams) (Participant, error) {
	if s == nil {
		return Participant{}, fmt.Errorf("ParticipantService is nil")
	}
	if !params.Principal.IsAdmin {
		return Participant{}, ErrUnauthorized
	}
	if s.participants == nil {
		return Participant{}, fmt.Errorf("participant repository not configured")
	}

	existing, err := s.participants.GetParticipant(ctx, params.ParticipantID)
	if err != nil {
		return Participant{}, mapSessionRepoError(err)
	}

	normalized := normalizeParticipantInput(params.Input)
	vErr := validateParticipantInput(normalized, false)
	if vErr.HasErrors() {
		return Participant{}, vErr
	}

	passwordHash, err := s.participants.GetParticipantPasswordHash(ctx, existing.ID)
	if err != nil {
		return Participant{}, mapSessionRepoError(err)
	}
	if normalized.Password != "" {
		passwordHash, err = s.hashPassword(normalized.Password)
		if err != nil {
			return Participant{}, err
		}
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.IsAdmin = normalized.IsAdmin
	updated.UpdatedAt = s.now()

	persisted, err := s.participants.UpdateParticipant(ctx, updated, passwordHash)
	if err != nil {
		return Participant{}, mapSessionRepoError(err)
	}

	return persisted, nil
}

// DeleteParticipant removes a participant when requested by an administrator.
func (s *ParticipantService) DeleteParticipant(ctx context.Context, principal Principal, participantID string) error {
	if s == nil {
		return fmt.Errorf("ParticipantService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.participants == nil {
		return fmt.Errorf("participant repository not configured")
	}

	if err := s.participants.DeleteParticipant(ctx, participantID); err != nil {
		return mapSessionRepoError(err)
	}
	return nil
}

// GetParticipant returns one participant. Participants may read their own
// record; administrators may read anyone's.
func (s *ParticipantService) GetParticipant(ctx context.Context, principal Principal, participantID string) (Participant, error) {
	if s == nil || s.participants == nil {
		return Participant{}, fmt.Errorf("participant repository not configured")
	}
	if !principal.IsAdmin && principal.ParticipantID != participantID {
		return Participant{}, ErrUnauthorized
	}

	participant, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		return Participant{}, mapSessionRepoError(err)
	}
	return participant, nil
}

// ListParticipants returns the directory ordered by email.
func (s *ParticipantService) ListParticipants(ctx context.Context, principal Principal) ([]Participant, error) {
	if s == nil {
		return nil, fmt.Errorf("ParticipantService is nil")
	}
	if s.participants == nil {
		return nil, nil
	}

	participants, err := s.participants.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Participant, len(participants))
	copy(out, participants)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func normalizeParticipantInput(input ParticipantInput) ParticipantInput {
	return ParticipantInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsAdmin:     input.IsAdmin,
		Password:    input.Password,
	}
}

func validateParticipantInput(input ParticipantInput, passwordRequired bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	if passwordRequired && input.Password == "" {
		vErr.add("password", "password is required")
	}

	return vErr
}

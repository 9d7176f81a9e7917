package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/ritual-engine/internal/persistence"
)

// identityHash keeps passwords readable in assertions.
func identityHash(password string) (string, error) {
	return "hash:" + password, nil
}

func TestParticipantService_CreateParticipant(t *testing.T) {
	t.Parallel()

	admin := Principal{ParticipantID: "admin-1", IsAdmin: true}

	t.Run("creates a participant with hashed password", func(t *testing.T) {
		t.Parallel()

		now := time.Now().UTC()
		repo := newParticipantRepositoryStub()
		svc := NewParticipantService(repo, identityHash, func() string { return "participant-1" }, func() time.Time { return now })

		created, err := svc.CreateParticipant(context.Background(), CreateParticipantParams{
			Principal: admin,
			Input: ParticipantInput{
				Email:       "  Mika@Example.com ",
				DisplayName: " Mika ",
				Password:    "secret",
			},
		})
		if err != nil {
			t.Fatalf("CreateParticipant failed: %v", err)
		}

		if created.ID != "participant-1" {
			t.Fatalf("expected generated id, got %q", created.ID)
		}
		if created.Email != "mika@example.com" {
			t.Fatalf("expected normalized email, got %q", created.Email)
		}
		if created.DisplayName != "Mika" {
			t.Fatalf("expected trimmed display name, got %q", created.DisplayName)
		}
		if repo.hashes["participant-1"] != "hash:secret" {
			t.Fatalf("expected stored hash, got %q", repo.hashes["participant-1"])
		}
	})

	t.Run("rejects non-admin callers", func(t *testing.T) {
		t.Parallel()

		svc := NewParticipantService(newParticipantRepositoryStub(), identityHash, nil, nil)

		_, err := svc.CreateParticipant(context.Background(), CreateParticipantParams{
			Principal: Principal{ParticipantID: "member-1"},
			Input:     ParticipantInput{Email: "mika@example.com", DisplayName: "Mika", Password: "secret"},
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("collects validation failures", func(t *testing.T) {
		t.Parallel()

		svc := NewParticipantService(newParticipantRepositoryStub(), identityHash, nil, nil)

		_, err := svc.CreateParticipant(context.Background(), CreateParticipantParams{
			Principal: admin,
			Input:     ParticipantInput{Email: "not-an-email", DisplayName: "", Password: ""},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %#v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("maps duplicate emails", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.createErr = persistence.ErrDuplicate
		svc := NewParticipantService(repo, identityHash, func() string { return "participant-1" }, nil)

		_, err := svc.CreateParticipant(context.Background(), CreateParticipantParams{
			Principal: admin,
			Input:     ParticipantInput{Email: "mika@example.com", DisplayName: "Mika", Password: "secret"},
		})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestParticipantService_UpdateParticipant(t *testing.T) {
	t.Parallel()

	admin := Principal{ParticipantID: "admin-1", IsAdmin: true}

	t.Run("empty password keeps the current hash", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.seed(Participant{ID: "participant-1", Email: "mika@example.com", DisplayName: "Mika"}, "hash:original")
		svc := NewParticipantService(repo, identityHash, nil, nil)

		updated, err := svc.UpdateParticipant(context.Background(), UpdateParticipantParams{
			Principal:     admin,
			ParticipantID: "participant-1",
			Input:         ParticipantInput{Email: "mika@example.com", DisplayName: "Mika A."},
		})
		if err != nil {
			t.Fatalf("UpdateParticipant failed: %v", err)
		}

		if updated.DisplayName != "Mika A." {
			t.Fatalf("expected updated display name, got %q", updated.DisplayName)
		}
		if repo.hashes["participant-1"] != "hash:original" {
			t.Fatalf("expected hash preserved, got %q", repo.hashes["participant-1"])
		}
	})

	t.Run("new password replaces the hash", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.seed(Participant{ID: "participant-1", Email: "mika@example.com", DisplayName: "Mika"}, "hash:original")
		svc := NewParticipantService(repo, identityHash, nil, nil)

		_, err := svc.UpdateParticipant(context.Background(), UpdateParticipantParams{
			Principal:     admin,
			ParticipantID: "participant-1",
			Input:         ParticipantInput{Email: "mika@example.com", DisplayName: "Mika", Password: "changed"},
		})
		if err != nil {
			t.Fatalf("UpdateParticipant failed: %v", err)
		}
		if repo.hashes["participant-1"] != "hash:changed" {
			t.Fatalf("expected rotated hash, got %q", repo.hashes["participant-1"])
		}
	})

	t.Run("maps missing participants", func(t *testing.T) {
		t.Parallel()

		svc := NewParticipantService(newParticipantRepositoryStub(), identityHash, nil, nil)

		_, err := svc.UpdateParticipant(context.Background(), UpdateParticipantParams{
			Principal:     admin,
			ParticipantID: "missing",
			Input:         ParticipantInput{Email: "mika@example.com", DisplayName: "Mika"},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestParticipantService_Access(t *testing.T) {
	t.Parallel()

	t.Run("participants may read their own record only", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.seed(Participant{ID: "participant-1", Email: "mika@example.com", DisplayName: "Mika"}, "hash")
		repo.seed(Participant{ID: "participant-2", Email: "rin@example.com", DisplayName: "Rin"}, "hash")
		svc := NewParticipantService(repo, identityHash, nil, nil)

		self := Principal{ParticipantID: "participant-1"}
		if _, err := svc.GetParticipant(context.Background(), self, "participant-1"); err != nil {
			t.Fatalf("expected self read to succeed: %v", err)
		}
		if _, err := svc.GetParticipant(context.Background(), self, "participant-2"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("deletion is admin only", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.seed(Participant{ID: "participant-1", Email: "mika@example.com", DisplayName: "Mika"}, "hash")
		svc := NewParticipantService(repo, identityHash, nil, nil)

		if err := svc.DeleteParticipant(context.Background(), Principal{ParticipantID: "participant-1"}, "participant-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if err := svc.DeleteParticipant(context.Background(), Principal{ParticipantID: "admin-1", IsAdmin: true}, "participant-1"); err != nil {
			t.Fatalf("expected admin delete to succeed: %v", err)
		}
	})

	t.Run("list is ordered by email", func(t *testing.T) {
		t.Parallel()

		repo := newParticipantRepositoryStub()
		repo.seed(Participant{ID: "participant-2", Email: "rin@example.com", DisplayName: "Rin"}, "hash")
		repo.seed(Participant{ID: "participant-1", Email: "mika@example.com", DisplayName: "Mika"}, "hash")
		svc := NewParticipantService(repo, identityHash, nil, nil)

		participants, err := svc.ListParticipants(context.Background(), Principal{ParticipantID: "participant-1"})
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(participants) != 2 || participants[0].Email != "mika@example.com" {
			t.Fatalf("expected email ordering, got %#v", participants)
		}
	})
}

// participantRepositoryStub stores participants and their password hashes.
type participantRepositoryStub struct {
	participants map[string]Participant
	hashes       map[string]string

	createErr error
	getErr    error
	updateErr error
}

func newParticipantRepositoryStub() *participantRepositoryStub {
	return &participantRepositoryStub{
		participants: make(map[string]Participant),
		hashes:       make(map[string]string),
	}
}

func (s *participantRepositoryStub) seed(participant Participant, hash string) {
	s.participants[participant.ID] = participant
	s.hashes[participant.ID] = hash
}

func (s *participantRepositoryStub) CreateParticipant(ctx context.Context, participant Participant, passwordHash string) (Participant, error) {
	if s.createErr != nil {
		return Participant{}, s.createErr
	}
	for _, existing := range s.participants {
		if existing.Email == participant.Email {
			return Participant{}, persistence.ErrDuplicate
		}
	}
	s.seed(participant, passwordHash)
	return participant, nil
}

func (s *participantRepositoryStub) GetParticipant(ctx context.Context, id string) (Participant, error) {
	if s.getErr != nil {
		return Participant{}, s.getErr
	}
	participant, ok := s.participants[id]
	if !ok {
		return Participant{}, persistence.ErrNotFound
	}
	return participant, nil
}

func (s *participantRepositoryStub) UpdateParticipant(ctx context.Context, participant Participant, passwordHash string) (Participant, error) {
	if s.updateErr != nil {
		return Participant{}, s.updateErr
	}
	if _, ok := s.participants[participant.ID]; !ok {
		return Participant{}, persistence.ErrNotFound
	}
	s.seed(participant, passwordHash)
	return participant, nil
}

func (s *participantRepositoryStub) DeleteParticipant(ctx context.Context, id string) error {
	if _, ok := s.participants[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.participants, id)
	delete(s.hashes, id)
	return nil
}

func (s *participantRepositoryStub) ListParticipants(ctx context.Context) ([]Participant, error) {
	out := make([]Participant, 0, len(s.participants))
	for _, participant := range s.participants {
		out = append(out, participant)
	}
	return out, nil
}

func (s *participantRepositoryStub) GetParticipantPasswordHash(ctx context.Context, id string) (string, error) {
	hash, ok := s.hashes[id]
	if !ok {
		return "", persistence.ErrNotFound
	}
	return hash, nil
}

package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/ritual-engine/internal/application"
	"github.com/example/ritual-engine/internal/streak"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// SessionServiceDeps captures dependencies for constructing a session service.
type SessionServiceDeps struct {
	Sessions application.SessionRepository
	Roster   application.RosterCommitter
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewSessionService builds a session service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps SessionServiceDeps) *application.SessionService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewSessionServiceWithLogger(
		deps.Sessions,
		deps.Roster,
		now,
		deps.Logger,
	)
}

// AttendanceServiceDeps captures dependencies for constructing an attendance
// service.
type AttendanceServiceDeps struct {
	Marks     application.AttendanceRepository
	Directory application.ParticipantDirectory
	Sessions  application.SessionReader
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewAttendanceService builds an attendance service using the supplied
// dependencies.
func (f *ServiceFactory) NewAttendanceService(deps AttendanceServiceDeps) *application.AttendanceService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAttendanceServiceWithLogger(
		deps.Marks,
		deps.Directory,
		deps.Sessions,
		now,
		deps.Logger,
	)
}

// StreakServiceDeps captures dependencies for constructing a streak service.
type StreakServiceDeps struct {
	History    application.AttendanceHistory
	Calculator *streak.Calculator
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewStreakService builds a streak service using the supplied dependencies.
func (f *ServiceFactory) NewStreakService(deps StreakServiceDeps) *application.StreakService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewStreakServiceWithLogger(
		deps.History,
		deps.Calculator,
		now,
		deps.Logger,
	)
}

// ParticipantServiceDeps captures dependencies for constructing a participant
// service.
type ParticipantServiceDeps struct {
	Participants application.ParticipantRepository
	HashPassword func(string) (string, error)
	IDGenerator  func() string
	Now          func() time.Time
}

// NewParticipantService builds a participant service using the supplied
// dependencies. When HashPassword is nil a transparent hash is used so tests
// do not pay the argon2 cost.
func (f *ServiceFactory) NewParticipantService(deps ParticipantServiceDeps) *application.ParticipantService {
	hash := deps.HashPassword
	if hash == nil {
		hash = func(password string) (string, error) { return "hash:" + password, nil }
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewParticipantService(
		deps.Participants,
		hash,
		idGen,
		now,
	)
}

// LearningPointServiceDeps captures dependencies for constructing a learning
// point service.
type LearningPointServiceDeps struct {
	Points      application.LearningPointRepository
	Sessions    application.SessionReader
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewLearningPointService builds a learning point service using the supplied
// dependencies.
func (f *ServiceFactory) NewLearningPointService(deps LearningPointServiceDeps) *application.LearningPointService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewLearningPointServiceWithLogger(
		deps.Points,
		deps.Sessions,
		idGen,
		now,
		deps.Logger,
	)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Sessions       application.AuthSessionRepository
	PasswordVerify application.PasswordVerifier
	TokenGenerator func() string
	Now            func() time.Time
	SessionTTL     time.Duration
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	token := deps.TokenGenerator
	if token == nil {
		token = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewAuthServiceWithLogger(
		deps.Credentials,
		deps.Sessions,
		deps.PasswordVerify,
		token,
		now,
		deps.SessionTTL,
		deps.Logger,
	)
}

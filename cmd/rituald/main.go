package main

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/ritual-engine/internal/application"
	"github.com/example/ritual-engine/internal/config"
	httptransport "github.com/example/ritual-engine/internal/http"
	"github.com/example/ritual-engine/internal/logging"
	"github.com/example/ritual-engine/internal/persistence"
	"github.com/example/ritual-engine/internal/persistence/memory"
	"github.com/example/ritual-engine/internal/persistence/sqlite"
	"github.com/example/ritual-engine/internal/streak"
)

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var repos repositorySet
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, records are lost on restart")
		repos = newMemoryRepositories()
	default:
		pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
		if err != nil {
			logger.Error("failed to open storage", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := pool.Close(); cerr != nil {
				logger.Error("failed to close storage", "error", cerr)
			}
		}()

		if err := pool.Migrate(context.Background()); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		repos = newSQLiteRepositories(pool)
	}

	idGenerator := uuid.NewString
	tokenGenerator := newSessionTokenGenerator(cfg.SessionSecret)
	now := func() time.Time { return time.Now().In(cfg.Timezone) }

	sessionRepo := newSessionRepositoryAdapter(repos.sessions)
	attendanceRepo := newAttendanceRepositoryAdapter(repos.attendance)
	participantRepo := newParticipantRepositoryAdapter(repos.participants)
	learningPointRepo := newLearningPointRepositoryAdapter(repos.learningPoints)
	authSessionRepo := newAuthSessionRepositoryAdapter(repos.authSessions)
	credentialStore := newCredentialStoreAdapter(repos.participants)

	attendanceService := application.NewAttendanceServiceWithLogger(attendanceRepo, participantRepo, sessionRepo, now, logger)
	sessionService := application.NewSessionServiceWithLogger(sessionRepo, attendanceService, now, logger)
	sessionService.Subscribe(func(event application.SessionEvent) {
		logger.Info("session transition",
			slog.String("day", event.Day),
			slog.String("type", string(event.Type)),
			slog.String("status", string(event.Status)),
		)
	})
	streakService := application.NewStreakServiceWithLogger(attendanceRepo, streak.NewCalculator(cfg.OffDay), now, logger)
	participantService := application.NewParticipantService(participantRepo, nil, idGenerator, now)
	learningPointService := application.NewLearningPointServiceWithLogger(learningPointRepo, sessionRepo, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(credentialStore, authSessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Participants:   httptransport.NewParticipantHandler(participantService, logger),
		Sessions:       httptransport.NewSessionHandler(sessionService, logger),
		Attendance:     httptransport.NewAttendanceHandler(attendanceService, logger),
		Streaks:        httptransport.NewStreakHandler(streakService, logger),
		LearningPoints: httptransport.NewLearningPointHandler(learningPointService, logger),
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.URL.Path, "/login") {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("ritual engine API listening", "addr", server.Addr, "off_day", cfg.OffDay.String())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// repositorySet groups the persistence repositories behind their interfaces
// so the storage driver can be selected at startup.
type repositorySet struct {
	sessions       persistence.SessionRepository
	attendance     persistence.AttendanceRepository
	participants   persistence.ParticipantRepository
	learningPoints persistence.LearningPointRepository
	authSessions   persistence.AuthSessionRepository
}

func newSQLiteRepositories(pool *sqlite.ConnectionPool) repositorySet {
	return repositorySet{
		sessions:       sqlite.NewSessionRepository(pool),
		attendance:     sqlite.NewAttendanceRepository(pool),
		participants:   sqlite.NewParticipantRepository(pool),
		learningPoints: sqlite.NewLearningPointRepository(pool),
		authSessions:   sqlite.NewAuthSessionRepository(pool),
	}
}

func newMemoryRepositories() repositorySet {
	store := memory.NewStorage()
	return repositorySet{
		sessions:       store,
		attendance:     store,
		participants:   store,
		learningPoints: store,
		authSessions:   store,
	}
}

// newSessionTokenGenerator mints opaque session tokens. Each token is a keyed
// MAC over a fresh random nonce, so the issued token space is bound to
// RITUAL_SESSION_SECRET and rotating the secret invalidates nothing already
// stored while changing every token minted afterwards.
func newSessionTokenGenerator(secret string) func() string {
	key := []byte(secret)
	return func() string {
		nonce := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
		}
		return deriveSessionToken(key, nonce)
	}
}

func deriveSessionToken(key, nonce []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	return hex.EncodeToString(mac.Sum(nil))
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, day string, sessionType application.SessionType) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, day, string(sessionType))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) ListSessions(ctx context.Context, filter application.SessionListFilter) ([]application.Session, error) {
	stored, err := a.repo.ListSessions(ctx, persistence.SessionFilter{
		Type:     string(filter.Type),
		Status:   string(filter.Status),
		DayFrom:  filter.DayFrom,
		DayUntil: filter.DayUntil,
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]application.Session, 0, len(stored))
	for _, record := range stored {
		sessions = append(sessions, toApplicationSession(record))
	}
	return sessions, nil
}

type attendanceRepositoryAdapter struct {
	repo persistence.AttendanceRepository
}

func newAttendanceRepositoryAdapter(repo persistence.AttendanceRepository) *attendanceRepositoryAdapter {
	return &attendanceRepositoryAdapter{repo: repo}
}

func (a *attendanceRepositoryAdapter) SaveRoster(ctx context.Context, day string, sessionType application.SessionType, marks []application.AttendanceMark) error {
	records := make([]persistence.AttendanceMark, 0, len(marks))
	for _, mark := range marks {
		records = append(records, toPersistenceMark(mark))
	}
	return a.repo.SaveRoster(ctx, day, string(sessionType), records)
}

func (a *attendanceRepositoryAdapter) ListRoster(ctx context.Context, day string, sessionType application.SessionType) ([]application.AttendanceMark, error) {
	stored, err := a.repo.ListRoster(ctx, day, string(sessionType))
	if err != nil {
		return nil, err
	}
	return toApplicationMarks(stored), nil
}

func (a *attendanceRepositoryAdapter) ListParticipantHistory(ctx context.Context, participantID string, sessionType application.SessionType) ([]application.AttendanceMark, error) {
	stored, err := a.repo.ListParticipantHistory(ctx, participantID, string(sessionType))
	if err != nil {
		return nil, err
	}
	return toApplicationMarks(stored), nil
}

type participantRepositoryAdapter struct {
	repo persistence.ParticipantRepository
}

func newParticipantRepositoryAdapter(repo persistence.ParticipantRepository) *participantRepositoryAdapter {
	return &participantRepositoryAdapter{repo: repo}
}

func (a *participantRepositoryAdapter) CreateParticipant(ctx context.Context, participant application.Participant, passwordHash string) (application.Participant, error) {
	if err := a.repo.CreateParticipant(ctx, toPersistenceParticipant(participant, passwordHash)); err != nil {
		return application.Participant{}, err
	}
	stored, err := a.repo.GetParticipant(ctx, participant.ID)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) GetParticipant(ctx context.Context, id string) (application.Participant, error) {
	stored, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) UpdateParticipant(ctx context.Context, participant application.Participant, passwordHash string) (application.Participant, error) {
	if err := a.repo.UpdateParticipant(ctx, toPersistenceParticipant(participant, passwordHash)); err != nil {
		return application.Participant{}, err
	}
	stored, err := a.repo.GetParticipant(ctx, participant.ID)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

func (a *participantRepositoryAdapter) DeleteParticipant(ctx context.Context, id string) error {
	return a.repo.DeleteParticipant(ctx, id)
}

func (a *participantRepositoryAdapter) ListParticipants(ctx context.Context) ([]application.Participant, error) {
	stored, err := a.repo.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	participants := make([]application.Participant, 0, len(stored))
	for _, record := range stored {
		participants = append(participants, toApplicationParticipant(record))
	}
	return participants, nil
}

func (a *participantRepositoryAdapter) GetParticipantPasswordHash(ctx context.Context, id string) (string, error) {
	stored, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return "", err
	}
	return stored.PasswordHash, nil
}

type credentialStoreAdapter struct {
	repo persistence.ParticipantRepository
}

func newCredentialStoreAdapter(repo persistence.ParticipantRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetParticipantCredentialsByEmail(ctx context.Context, email string) (application.ParticipantCredentials, error) {
	stored, err := a.repo.GetParticipantByEmail(ctx, email)
	if err != nil {
		return application.ParticipantCredentials{}, err
	}
	return application.ParticipantCredentials{
		Participant:  toApplicationParticipant(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetParticipant(ctx context.Context, id string) (application.Participant, error) {
	stored, err := a.repo.GetParticipant(ctx, id)
	if err != nil {
		return application.Participant{}, err
	}
	return toApplicationParticipant(stored), nil
}

type learningPointRepositoryAdapter struct {
	repo persistence.LearningPointRepository
}

func newLearningPointRepositoryAdapter(repo persistence.LearningPointRepository) *learningPointRepositoryAdapter {
	return &learningPointRepositoryAdapter{repo: repo}
}

func (a *learningPointRepositoryAdapter) CreateLearningPoint(ctx context.Context, point application.LearningPoint) (application.LearningPoint, error) {
	if err := a.repo.CreateLearningPoint(ctx, toPersistencePoint(point)); err != nil {
		return application.LearningPoint{}, err
	}
	stored, err := a.repo.GetLearningPoint(ctx, point.ID)
	if err != nil {
		return application.LearningPoint{}, err
	}
	return toApplicationPoint(stored), nil
}

func (a *learningPointRepositoryAdapter) GetLearningPoint(ctx context.Context, id string) (application.LearningPoint, error) {
	stored, err := a.repo.GetLearningPoint(ctx, id)
	if err != nil {
		return application.LearningPoint{}, err
	}
	return toApplicationPoint(stored), nil
}

func (a *learningPointRepositoryAdapter) UpdateLearningPoint(ctx context.Context, point application.LearningPoint) (application.LearningPoint, error) {
	if err := a.repo.UpdateLearningPoint(ctx, toPersistencePoint(point)); err != nil {
		return application.LearningPoint{}, err
	}
	stored, err := a.repo.GetLearningPoint(ctx, point.ID)
	if err != nil {
		return application.LearningPoint{}, err
	}
	return toApplicationPoint(stored), nil
}

func (a *learningPointRepositoryAdapter) DeleteLearningPoint(ctx context.Context, id string) error {
	return a.repo.DeleteLearningPoint(ctx, id)
}

func (a *learningPointRepositoryAdapter) ListLearningPoints(ctx context.Context, day string, sessionType application.SessionType) ([]application.LearningPoint, error) {
	stored, err := a.repo.ListLearningPoints(ctx, day, string(sessionType))
	if err != nil {
		return nil, err
	}
	points := make([]application.LearningPoint, 0, len(stored))
	for _, record := range stored {
		points = append(points, toApplicationPoint(record))
	}
	return points, nil
}

type authSessionRepositoryAdapter struct {
	repo persistence.AuthSessionRepository
}

func newAuthSessionRepositoryAdapter(repo persistence.AuthSessionRepository) *authSessionRepositoryAdapter {
	return &authSessionRepositoryAdapter{repo: repo}
}

func (a *authSessionRepositoryAdapter) CreateAuthSession(ctx context.Context, session application.AuthSession) (application.AuthSession, error) {
	stored, err := a.repo.CreateAuthSession(ctx, toPersistenceAuthSession(session))
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationAuthSession(stored), nil
}

func (a *authSessionRepositoryAdapter) GetAuthSession(ctx context.Context, token string) (application.AuthSession, error) {
	stored, err := a.repo.GetAuthSession(ctx, token)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationAuthSession(stored), nil
}

func (a *authSessionRepositoryAdapter) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (application.AuthSession, error) {
	stored, err := a.repo.RevokeAuthSession(ctx, token, revokedAt)
	if err != nil {
		return application.AuthSession{}, err
	}
	return toApplicationAuthSession(stored), nil
}

func (a *authSessionRepositoryAdapter) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredAuthSessions(ctx, reference)
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		Day:         session.Day,
		Type:        string(session.Type),
		Status:      string(session.Status),
		ScheduledAt: session.ScheduledAt,
		StartedAt:   session.StartedAt,
		EndedAt:     session.EndedAt,
		Synced:      session.Synced,
		CreatedBy:   session.CreatedBy,
		Version:     session.Version,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func toApplicationSession(session persistence.Session) application.Session {
	return application.Session{
		Day:         session.Day,
		Type:        application.SessionType(session.Type),
		Status:      application.SessionStatus(session.Status),
		ScheduledAt: session.ScheduledAt,
		StartedAt:   session.StartedAt,
		EndedAt:     session.EndedAt,
		Synced:      session.Synced,
		CreatedBy:   session.CreatedBy,
		Version:     session.Version,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func toPersistenceMark(mark application.AttendanceMark) persistence.AttendanceMark {
	record := persistence.AttendanceMark{
		Day:           mark.Day,
		Type:          string(mark.Type),
		ParticipantID: mark.ParticipantID,
		Status:        string(mark.Status),
		MarkedAt:      mark.MarkedAt,
	}
	if mark.Reason != "" {
		reason := mark.Reason
		record.Reason = &reason
	}
	return record
}

func toApplicationMarks(records []persistence.AttendanceMark) []application.AttendanceMark {
	marks := make([]application.AttendanceMark, 0, len(records))
	for _, record := range records {
		mark := application.AttendanceMark{
			Day:           record.Day,
			Type:          application.SessionType(record.Type),
			ParticipantID: record.ParticipantID,
			Status:        application.AttendanceStatus(record.Status),
			MarkedAt:      record.MarkedAt,
		}
		if record.Reason != nil {
			mark.Reason = *record.Reason
		}
		marks = append(marks, mark)
	}
	return marks
}

func toPersistenceParticipant(participant application.Participant, passwordHash string) persistence.Participant {
	return persistence.Participant{
		ID:           participant.ID,
		Email:        participant.Email,
		DisplayName:  participant.DisplayName,
		IsAdmin:      participant.IsAdmin,
		PasswordHash: passwordHash,
		CreatedAt:    participant.CreatedAt,
		UpdatedAt:    participant.UpdatedAt,
	}
}

func toApplicationParticipant(participant persistence.Participant) application.Participant {
	return application.Participant{
		ID:          participant.ID,
		Email:       participant.Email,
		DisplayName: participant.DisplayName,
		IsAdmin:     participant.IsAdmin,
		CreatedAt:   participant.CreatedAt,
		UpdatedAt:   participant.UpdatedAt,
	}
}

func toPersistencePoint(point application.LearningPoint) persistence.LearningPoint {
	return persistence.LearningPoint{
		ID:            point.ID,
		Day:           point.Day,
		Type:          string(point.Type),
		ParticipantID: point.ParticipantID,
		Content:       point.Content,
		CreatedAt:     point.CreatedAt,
		UpdatedAt:     point.UpdatedAt,
	}
}

func toApplicationPoint(point persistence.LearningPoint) application.LearningPoint {
	return application.LearningPoint{
		ID:            point.ID,
		Day:           point.Day,
		Type:          application.SessionType(point.Type),
		ParticipantID: point.ParticipantID,
		Content:       point.Content,
		CreatedAt:     point.CreatedAt,
		UpdatedAt:     point.UpdatedAt,
	}
}

func toPersistenceAuthSession(session application.AuthSession) persistence.AuthSession {
	return persistence.AuthSession{
		ID:            session.ID,
		ParticipantID: session.ParticipantID,
		Token:         session.Token,
		ExpiresAt:     session.ExpiresAt,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
		RevokedAt:     session.RevokedAt,
	}
}

func toApplicationAuthSession(session persistence.AuthSession) application.AuthSession {
	return application.AuthSession{
		ID:            session.ID,
		ParticipantID: session.ParticipantID,
		Token:         session.Token,
		ExpiresAt:     session.ExpiresAt,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
		RevokedAt:     session.RevokedAt,
	}
}

package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"BudgetCorpSaas/internal/logger"
	"BudgetCorpSaas/internal/serviceiface"

	"github.com/google/uuid"
)

// UserSession is the identity handlers rely on: who is acting, with which
// role. Department membership is resolved per request by the budget
// middleware, not cached here.
type UserSession struct {
	SessionID     string `json:"session_id"`
	UserID        string `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	RoleCode      string `json:"role_code"`
	LastLoginTime string `json:"last_login_time"`
	ClientIP      string `json:"client_ip"`
	IsLoggedIn    bool   `json:"is_logged_in"`
}

type AuthService struct {
	db             *sql.DB
	maxUsers       int
	sessionTimeout time.Duration
	sessions       map[string]*UserSession // keyed by session id
	byUser         map[string]*UserSession
	lastSeen       map[string]time.Time
	mu             sync.Mutex
	stopCh         chan struct{}
}

func NewAuthService(db *sql.DB, maxUsers, sessionTimeoutMinutes int) serviceiface.Service {
	if maxUsers <= 0 {
		maxUsers = 500
	}
	if sessionTimeoutMinutes <= 0 {
		sessionTimeoutMinutes = 8 * 60
	}
	return &AuthService{
		db:             db,
		maxUsers:       maxUsers,
		sessionTimeout: time.Duration(sessionTimeoutMinutes) * time.Minute,
		sessions:       make(map[string]*UserSession),
		byUser:         make(map[string]*UserSession),
		lastSeen:       make(map[string]time.Time),
		stopCh:         make(chan struct{}),
	}
}

func (a *AuthService) Name() string { return "auth" }

func (a *AuthService) Start() error {
	go a.sessionCleaner()
	return nil
}

func (a *AuthService) Stop() error {
	close(a.stopCh)
	return nil
}

func (a *AuthService) Login(username, password, clientIP string) (*UserSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.byUserByEmail(username); ok {
		existing.LastLoginTime = time.Now().Format(time.RFC3339)
		existing.ClientIP = clientIP
		a.lastSeen[existing.SessionID] = time.Now()
		if logger.GlobalLogger != nil {
			logger.GlobalLogger.LogAudit(fmt.Sprintf("User %s re-logged in, returning existing session", username))
		}
		return existing, nil
	}

	if len(a.sessions) >= a.maxUsers {
		return nil, errors.New("maximum concurrent users reached")
	}

	var (
		userID, name, email string
		roleName, roleCode  sql.NullString
	)
	query := `
	SELECT u.id, u.employee_name, u.email, r.name, r.rolecode
	FROM users u
	LEFT JOIN user_roles ur ON u.id = ur.user_id
	LEFT JOIN roles r ON ur.role_id = r.id
	WHERE u.email = $1 AND u.password = $2 AND UPPER(u.status) = 'ACTIVE'`
	if err := a.db.QueryRow(query, username, password).
		Scan(&userID, &name, &email, &roleName, &roleCode); err != nil {
		return nil, errors.New("invalid credentials or user not found")
	}

	session := &UserSession{
		SessionID:     uuid.New().String(),
		UserID:        userID,
		Name:          name,
		Email:         email,
		Role:          roleName.String,
		RoleCode:      roleCode.String,
		LastLoginTime: time.Now().Format(time.RFC3339),
		ClientIP:      clientIP,
		IsLoggedIn:    true,
	}
	a.sessions[session.SessionID] = session
	a.byUser[userID] = session
	a.lastSeen[session.SessionID] = time.Now()

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged in: " + username)
	}
	return session, nil
}

func (a *AuthService) byUserByEmail(email string) (*UserSession, bool) {
	for _, s := range a.sessions {
		if s.Email == email && s.IsLoggedIn {
			return s, true
		}
	}
	return nil, false
}

func (a *AuthService) Logout(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, exists := a.sessions[sessionID]
	if !exists {
		return errors.New("session not found")
	}
	delete(a.sessions, sessionID)
	delete(a.byUser, session.UserID)
	delete(a.lastSeen, sessionID)

	if logger.GlobalLogger != nil {
		logger.GlobalLogger.LogAudit("User logged out: " + session.UserID)
	}
	return nil
}

var globalAuthService *AuthService

func SetGlobalAuthService(svc *AuthService) {
	globalAuthService = svc
}

// GetActiveSessions returns active sessions from the global AuthService.
func GetActiveSessions() []*UserSession {
	if globalAuthService == nil {
		return nil
	}
	return globalAuthService.GetActiveSessions()
}

func (a *AuthService) GetActiveSessions() []*UserSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	sessions := make([]*UserSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// sessionCleaner drops sessions idle past the configured timeout.
func (a *AuthService) sessionCleaner() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.mu.Lock()
			cutoff := time.Now().Add(-a.sessionTimeout)
			for id, seen := range a.lastSeen {
				if seen.Before(cutoff) {
					if s, ok := a.sessions[id]; ok {
						delete(a.byUser, s.UserID)
					}
					delete(a.sessions, id)
					delete(a.lastSeen, id)
				}
			}
			a.mu.Unlock()
		}
	}
}

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"risk-console/internal/console"
	"risk-console/pkg/db"
	"risk-console/pkg/i18n"
)

const (
	operatorContextKey = "Operator"
	sessionCookie      = "console_session"
	sessionTTL         = 12 * time.Hour
)

// OperatorClaims represents the session token of a logged-in operator.
type OperatorClaims struct {
	OperatorID string `json:"oid"`
	Username   string `json:"usr"`
	jwt.RegisteredClaims
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func checkPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(op *db.Operator, secret string, expiresAt time.Time) (string, error) {
	claims := OperatorClaims{
		OperatorID: op.ID,
		Username:   op.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (*OperatorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &OperatorClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}

// SeedOperator creates the configured operator or refreshes its password.
func SeedOperator(ctx context.Context, q *db.Queries, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return q.UpsertOperatorPassword(ctx, db.Operator{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	})
}

// AuthMiddleware requires a valid session cookie when operator auth is
// enabled. Pages redirect to /login; JSON and WebSocket routes get 401.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.Options.AuthEnabled {
			c.Next()
			return
		}
		token, err := c.Cookie(sessionCookie)
		if err == nil {
			var claims *OperatorClaims
			if claims, err = parseToken(token, s.Options.JWTSecret); err == nil {
				c.Set(operatorContextKey, claims.Username)
				c.Next()
				return
			}
		}

		if wantsHTML(c) {
			c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":  "INVALID_SESSION",
			"error": "missing or expired operator session",
		})
	}
}

func wantsHTML(c *gin.Context) bool {
	p := c.Request.URL.Path
	return !strings.HasPrefix(p, "/api/") && !strings.HasPrefix(p, "/ws/")
}

// CurrentOperator returns the logged-in operator, empty when auth is off.
func CurrentOperator(c *gin.Context) string {
	return c.GetString(operatorContextKey)
}

func actor(c *gin.Context) console.Actor {
	return console.Actor{Operator: CurrentOperator(c), RequestID: requestID(c)}
}

type loginView struct {
	Next     string
	Username string
	Error    string
}

func (s *Server) loginPage(c *gin.Context) {
	if !s.Options.AuthEnabled {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	s.render(c, http.StatusOK, "login", "Login", loginView{Next: safeRedirect(c.Query("next"), "/")})
}

func (s *Server) login(c *gin.Context) {
	next := safeRedirect(c.PostForm("next"), "/")
	if !s.Options.AuthEnabled || s.Operators == nil {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	fail := func() {
		s.render(c, http.StatusUnauthorized, "login", "Login", loginView{
			Next:     next,
			Username: username,
			Error:    i18n.M().LoginFailed,
		})
	}

	ctx := c.Request.Context()
	op, err := s.Operators.GetOperatorByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.Logger.Error("operator lookup failed", "error", err)
		}
		fail()
		return
	}
	if err := checkPassword(op.PasswordHash, password); err != nil {
		fail()
		return
	}

	expiresAt := time.Now().Add(sessionTTL)
	token, err := generateToken(op, s.Options.JWTSecret, expiresAt)
	if err != nil {
		s.Logger.Error("sign session token", "error", err)
		fail()
		return
	}
	if err := s.Operators.TouchOperatorLogin(ctx, op.ID, time.Now()); err != nil {
		s.Logger.Warn("stamp operator login", "operator", op.Username, "error", err)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusSeeOther, next)
}

func (s *Server) logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusSeeOther, "/login")
}

// safeRedirect accepts only local absolute paths.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

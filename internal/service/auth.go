package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/bucksops/internal/domain"
	"github.com/punchamoorthee/bucksops/internal/store"
)

// Auth handles registration and login. Registration opens the user's
// account with the configured starting balance in the same call; login
// issues a short-lived HS256 token carrying the user id.
type Auth struct {
	accounts        store.Accounts
	secret          []byte
	tokenTTL        time.Duration
	startingBalance decimal.Decimal
	logger          *zap.Logger
}

func NewAuth(accounts store.Accounts, secret string, tokenTTL time.Duration, startingBalance decimal.Decimal, logger *zap.Logger) *Auth {
	return &Auth{
		accounts:        accounts,
		secret:          []byte(secret),
		tokenTTL:        tokenTTL,
		startingBalance: startingBalance,
		logger:          logger,
	}
}

func (a *Auth) Register(ctx context.Context, username, password string) (*domain.User, *domain.Account, error) {
	if username == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: username and password required", domain.ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("password hash failed: %w", err)
	}

	user, err := a.accounts.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, nil, err
	}

	account, err := a.accounts.CreateAccount(ctx, user.ID, a.startingBalance)
	if err != nil {
		return nil, nil, fmt.Errorf("account creation for user %d: %w", user.ID, err)
	}

	a.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("account_id", account.ID))
	return user, account, nil
}

func (a *Auth) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := a.accounts.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(user.ID, 10),
		"iat": now.Unix(),
		"exp": now.Add(a.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token signing failed: %w", err)
	}
	return token, user, nil
}

// ParseToken validates a bearer token and returns the user id it carries.
func (a *Auth) ParseToken(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, domain.ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, domain.ErrInvalidCredentials
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, domain.ErrInvalidCredentials
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidCredentials
	}
	return userID, nil
}

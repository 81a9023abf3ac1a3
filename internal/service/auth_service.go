// Package service: JWT 鉴权 + Middleware
package service

import (
	"LiteLens/internal/config"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// ErrBadCredentials 表示用户名或密码错误
var ErrBadCredentials = errors.New("用户名或密码无效")

const issuer = "LiteLens"

/* ---------- JWT Handling ---------- */

// Claim 定义 JWT 的载荷结构
type Claim struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator 持有签名密钥与用户表（来自配置）
type Authenticator struct {
	hmacKey []byte
	ttl     time.Duration
	users   map[string]string // username -> bcrypt hash
}

// NewAuthenticator 创建 Authenticator 实例；secret 为空时返回错误
func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt_secret 不能为空")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	users := make(map[string]string, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Username == "" || u.PasswordHash == "" {
			slog.Warn("[Auth] 忽略不完整的用户配置", "username", u.Username)
			continue
		}
		users[u.Username] = u.PasswordHash
	}
	if len(users) == 0 {
		slog.Warn("[Auth] 认证已启用但未配置任何用户，所有登录都会失败")
	}
	return &Authenticator{hmacKey: []byte(cfg.JWTSecret), ttl: ttl, users: users}, nil
}

// HashPassword 生成 bcrypt 哈希，供配置用户时使用
func HashPassword(pass string) (string, error) {
	if pass == "" {
		return "", errors.New("密码不能为空")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("生成密码哈希失败: %w", err)
	}
	return string(hash), nil
}

// Login 校验用户名和密码，成功则签发令牌
func (a *Authenticator) Login(user, pass string) (string, error) {
	hash, ok := a.users[user]
	if !ok {
		return "", ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)); err != nil {
		return "", ErrBadCredentials
	}
	return a.GenToken(user)
}

// GenToken 生成一个新的 JWT
func (a *Authenticator) GenToken(username string) (string, error) {
	now := time.Now()
	claims := Claim{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(a.hmacKey)
	if err != nil {
		return "", fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signedToken, nil
}

// ParseToken 解析并验证 JWT 字符串
func (a *Authenticator) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return a.hmacKey, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, known := a.users[claims.Username]; !known {
		return nil, fmt.Errorf("%w: 用户 '%s' 不存在", ErrInvalidToken, claims.Username)
	}
	return claims, nil
}

/* ---------- Context Helpers for Claims ---------- */

type ctxKey int

const claimKey ctxKey = 0

func contextWithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey, c)
}

// ClaimFrom 取出中间件放入请求上下文的 Claim，未认证时为 nil
func ClaimFrom(r *http.Request) *Claim {
	claims, _ := r.Context().Value(claimKey).(*Claim)
	return claims
}

/* ---------- 中间件 (Middleware) ---------- */

// Middleware 解析 Bearer 令牌，合法时把 Claim 放进请求上下文。
// 它本身不拒绝请求，是否必须认证由路由层决定。
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if tokenString, found := strings.CutPrefix(authHeader, "Bearer "); found && tokenString != "" {
			claims, err := a.ParseToken(tokenString)
			if err == nil {
				r = r.WithContext(contextWithClaim(r.Context(), claims))
			} else {
				slog.Info("[Auth] Token无效或已过期", "path", r.URL.Path, "ip", r.RemoteAddr, "error", err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

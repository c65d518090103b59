package service

import (
	"context"
	"time"

	"github.com/bitfantasy/repairhub/internal/config"
	"github.com/bitfantasy/repairhub/internal/repair/entity"
	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 登录换 token。会话/令牌体系是外围协作者，这里只做最简单的签发
type AuthService struct {
	adminRepo *repository.AdminRepository
	cfg       *config.Config
}

func NewAuthService(adminRepo *repository.AdminRepository, cfg *config.Config) *AuthService {
	return &AuthService{adminRepo: adminRepo, cfg: cfg}
}

// Claims 访问令牌载荷：管理员 id + 角色 id 集合 + 所属网点
type Claims struct {
	AdminID  string   `json:"uid"`
	Name     string   `json:"name"`
	BranchID string   `json:"branch_id"`
	RoleIDs  []string `json:"role_ids"`
	jwt.RegisteredClaims
}

// LoginResult 登录结果
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Admin     *entity.Admin `json:"admin"`
}

// Login 手机号+密码登录
func (s *AuthService) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	admin, err := s.adminRepo.FindByPhone(ctx, phone)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return nil, &Error{Kind: KindPermissionDenied, Message: "invalid phone or password"}
		}
		return nil, wrapStorage(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, &Error{Kind: KindPermissionDenied, Message: "invalid phone or password"}
	}

	roleIDs := make([]string, 0, len(admin.Roles))
	for _, r := range admin.Roles {
		roleIDs = append(roleIDs, r.ID)
	}
	branchID := ""
	if admin.BranchID != nil {
		branchID = *admin.BranchID
	}

	expiresAt := time.Now().Add(s.cfg.JWT.AccessTokenExpire)
	claims := &Claims{
		AdminID:  admin.ID,
		Name:     admin.Name,
		BranchID: branchID,
		RoleIDs:  roleIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, StorageError(err)
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

// HashPassword 口令哈希，建号与改密用
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

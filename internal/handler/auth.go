package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"
	"unicode"

	"github.com/parjanul123/MoneyManager/internal/config"
	"github.com/parjanul123/MoneyManager/internal/middleware"
	"github.com/parjanul123/MoneyManager/internal/models"
	"github.com/parjanul123/MoneyManager/internal/util"
	"github.com/parjanul123/MoneyManager/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

const (
	maxFailedLogins = 5
	lockoutDuration = 10 * time.Minute
)

type AuthHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Notifier *webhook.Notifier
	oauth    *oauth2.Config
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, notifier *webhook.Notifier) *AuthHandler {
	return &AuthHandler{
		DB:       db,
		Cfg:      cfg,
		Notifier: notifier,
		oauth: &oauth2.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			RedirectURL:  cfg.Discord.RedirectURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}
}

// validatePassword requires at least 8 chars with a letter and a digit.
func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	var hasLetter, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain a letter and a digit")
	}
	return nil
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if !usernameRe.MatchString(req.Username) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			"username must be 3-20 characters: letters, digits, underscore")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	var count int64
	if err := h.DB.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to check username")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username already taken")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.Cfg.Auth.BcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to hash password")
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Email:        req.Email,
	}
	if user.DisplayName == "" {
		user.DisplayName = req.Username
	}
	if err := h.DB.Create(&user).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create user")
		return
	}

	h.Notifier.NotifyUserJoined(&user)
	util.Success(c, util.Response{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid username or password")
		return
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth,
			"account locked, try again later")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.recordFailedLogin(&user)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid username or password")
		return
	}

	token, err := h.openSession(c, &user)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create session")
		return
	}

	util.Success(c, util.Response{
		"token":    token,
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *AuthHandler) recordFailedLogin(user *models.User) {
	updates := map[string]interface{}{
		"failed_login_attempts": user.FailedLoginAttempts + 1,
	}
	if user.FailedLoginAttempts+1 >= maxFailedLogins {
		until := time.Now().Add(lockoutDuration)
		updates["locked_until"] = until
		updates["failed_login_attempts"] = 0
		log.Printf("auth: user %d locked until %s", user.ID, until.Format(time.RFC3339))
	}
	if err := h.DB.Model(user).Updates(updates).Error; err != nil {
		log.Printf("auth: record failed login for user %d: %v", user.ID, err)
	}
}

// openSession creates the session row, resets lockout counters and
// returns a signed JWT.
func (h *AuthHandler) openSession(c *gin.Context, user *models.User) (string, error) {
	ttl := time.Duration(h.Cfg.Auth.TokenExpireHours) * time.Hour
	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := h.DB.Create(&session).Error; err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	now := time.Now()
	if err := h.DB.Model(user).Updates(map[string]interface{}{
		"failed_login_attempts": 0,
		"locked_until":          nil,
		"last_login_at":         now,
		"last_login_ip":         c.ClientIP(),
	}).Error; err != nil {
		log.Printf("auth: stamp login for user %d: %v", user.ID, err)
	}

	token, err := util.GenerateToken(h.Cfg.Auth.JWTSecret, user.ID, session.ID, ttl)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (h *AuthHandler) Logout(c *gin.Context) {
	v, ok := c.Get("currentSession")
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}
	session := v.(*models.Session)
	if err := h.DB.Model(&models.Session{}).
		Where("id = ?", session.ID).
		Update("revoked", true).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to log out")
		return
	}
	util.Success(c, util.Response{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}
	util.Success(c, util.Response{
		"id":               user.ID,
		"username":         user.Username,
		"display_name":     user.DisplayName,
		"email":            user.Email,
		"discord_username": user.DiscordUsername,
		"avatar_url":       user.AvatarURL,
		"created_at":       user.CreatedAt,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not logged in")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "wrong password")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.Cfg.Auth.BcryptCost)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to hash password")
		return
	}
	if err := h.DB.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to change password")
		return
	}

	// other sessions die with the password
	if err := h.DB.Model(&models.Session{}).
		Where("user_id = ?", user.ID).
		Update("revoked", true).Error; err != nil {
		log.Printf("auth: revoke sessions for user %d: %v", user.ID, err)
	}
	util.Success(c, util.Response{"message": "password changed, please log in again"})
}

// DiscordRedirect starts the OAuth authorization-code flow. The state
// value is kept in a short-lived cookie and checked on callback.
func (h *AuthHandler) DiscordRedirect(c *gin.Context) {
	if h.oauth.ClientID == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "discord login is not configured")
		return
	}
	state := uuid.NewString()
	c.SetCookie("mm_oauth_state", state, 300, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

type discordProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

func (h *AuthHandler) DiscordCallback(c *gin.Context) {
	state, err := c.Cookie("mm_oauth_state")
	if err != nil || state == "" || state != c.Query("state") {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid oauth state")
		return
	}
	code := c.Query("code")
	if code == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "missing oauth code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		log.Printf("auth: discord exchange: %v", err)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "discord login failed")
		return
	}

	profile, err := h.fetchDiscordProfile(ctx, token)
	if err != nil {
		log.Printf("auth: discord profile: %v", err)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "discord login failed")
		return
	}

	user, created, err := h.findOrCreateDiscordUser(profile)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create user")
		return
	}

	jwtToken, err := h.openSession(c, user)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create session")
		return
	}

	if created {
		h.Notifier.NotifyUserJoined(user)
	} else {
		h.Notifier.NotifyDiscordLinked(user)
	}

	util.Success(c, util.Response{
		"token":    jwtToken,
		"id":       user.ID,
		"username": user.Username,
	})
}

func (h *AuthHandler) fetchDiscordProfile(ctx context.Context, token *oauth2.Token) (*discordProfile, error) {
	client := h.oauth.Client(ctx, token)
	resp, err := client.Get("https://discord.com/api/users/@me")
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord profile: status %d", resp.StatusCode)
	}

	var profile discordProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("discord profile missing id")
	}
	return &profile, nil
}

// findOrCreateDiscordUser matches by discord id first, then creates a
// local user with a unique username derived from the Discord handle.
func (h *AuthHandler) findOrCreateDiscordUser(profile *discordProfile) (*models.User, bool, error) {
	var user models.User
	err := h.DB.Where("discord_id = ?", profile.ID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{
			"discord_username": profile.Username,
		}
		if profile.Avatar != "" {
			updates["avatar_url"] = discordAvatarURL(profile)
		}
		if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
			log.Printf("auth: refresh discord profile for user %d: %v", user.ID, err)
		}
		return &user, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	username := uniqueUsername(h.DB, profile.Username)
	user = models.User{
		Username:        username,
		DisplayName:     profile.Username,
		Email:           profile.Email,
		DiscordID:       profile.ID,
		DiscordUsername: profile.Username,
		AvatarURL:       discordAvatarURL(profile),
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

func discordAvatarURL(profile *discordProfile) string {
	if profile.Avatar == "" {
		return ""
	}
	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", profile.ID, profile.Avatar)
}

// uniqueUsername sanitizes the Discord handle into a valid local
// username, suffixing digits until it is free.
func uniqueUsername(db *gorm.DB, base string) string {
	cleaned := make([]rune, 0, len(base))
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			cleaned = append(cleaned, r)
		}
	}
	name := string(cleaned)
	if len(name) < 3 {
		name = "discord_user"
	}
	if len(name) > 20 {
		name = name[:20]
	}

	candidate := name
	for i := 1; ; i++ {
		var count int64
		if err := db.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil || count == 0 {
			return candidate
		}
		suffix := fmt.Sprintf("%d", i)
		if len(name)+len(suffix) > 20 {
			candidate = name[:20-len(suffix)] + suffix
		} else {
			candidate = name + suffix
		}
	}
}

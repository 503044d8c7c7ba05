package handler

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

// generateJWT генерує JWT для операторської консолі
func (h *Handler) generateJWT(operatorID string) (string, error) {
	claims := jwt.MapClaims{
		"operator_id": operatorID,
		"exp":         time.Now().Add(time.Hour * 12).Unix(),
		"iss":         "duelchat-service",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// validateToken перевіряє підпис та повертає operator_id.
func (h *Handler) validateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	operatorID, _ := claims["operator_id"].(string)
	if operatorID == "" {
		return "", errors.New("missing operator_id")
	}
	return operatorID, nil
}

// GetToken mints an operator token. Access is gated by a shared console key;
// operator identity is an anonymous UUID carried in the claims.
func (h *Handler) GetToken(c *gin.Context) {
	var body struct {
		ConsoleKey string `json:"console_key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ConsoleKey != os.Getenv("CONSOLE_KEY") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid console key"})
		return
	}

	operatorUUID, _ := uuid.NewRandom()
	operatorID := operatorUUID.String()

	token, err := h.generateJWT(operatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "operator_id": operatorID})
}

// RequireToken is the gin middleware guarding moderation endpoints.
func (h *Handler) RequireToken(c *gin.Context) {
	operatorID, err := h.bearerOperator(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set("operator_id", operatorID)
	c.Next()
}

func (h *Handler) bearerOperator(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
		return "", errors.New("authorization token missing")
	}
	return h.validateToken(authHeader[7:])
}

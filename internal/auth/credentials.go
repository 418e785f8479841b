// Package auth turns the caller-supplied credential token into the viewer
// identity. Tokens are issued and validated by the users service; the
// client only reads the claims it needs for rendering.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"linguachat/client/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("credential token missing")
	ErrTokenExpired = errors.New("credential token expired")
)

// ViewerFromToken builds the viewer for token. JWT tokens contribute their
// user id and username claims; opaque tokens (the users service default)
// rely on the fallback values. Explicit fallback values win over claims.
func ViewerFromToken(token, fallbackUserID, fallbackUsername string, now time.Time) (models.Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Viewer{}, ErrMissingToken
	}
	viewer := models.Viewer{UserID: fallbackUserID, Username: fallbackUsername, Token: token}

	if strings.Count(token, ".") != 2 {
		return viewer, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return models.Viewer{}, fmt.Errorf("parse credential token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return models.Viewer{}, fmt.Errorf("parse credential token: %w", err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return models.Viewer{}, ErrTokenExpired
	}

	if viewer.UserID == "" {
		viewer.UserID = claimString(claims, "user_id", "sub", "anon_id")
	}
	if viewer.Username == "" {
		viewer.Username = claimString(claims, "username", "name")
	}
	return viewer, nil
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/events2go/notify-hub/internal/domain/notification"
)

// Verifier validates a short-lived bearer credential issued by the external
// identity provider and yields the verified recipient identity. This
// service never issues credentials itself.
type Verifier interface {
	Verify(token string) (recipientID string, err error)
}

type jwtVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret []byte) Verifier {
	return &jwtVerifier{secret: secret}
}

func (v *jwtVerifier) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", notification.ErrUnauthenticated
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", notification.ErrUnauthenticated
	}
	return sub, nil
}

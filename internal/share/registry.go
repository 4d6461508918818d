package share

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/dgrijalva/jwt-go"
	argon2 "github.com/mdouchement/simple-argon2"
	"github.com/pkg/errors"

	"clipvault/internal/cverror"
	"clipvault/internal/database"
	"clipvault/internal/model"
)

type (
	// A Registry manages the share link lifecycle: creation, validity,
	// password authorization and download accounting.
	Registry interface {
		// Create registers a new link for the given item.
		Create(itemID string, opts Options) (*model.ShareLink, error)
		// Resolve returns the link when it is still valid. Revoked, expired,
		// exhausted and nonexistent links are indistinguishable to callers.
		Resolve(token string) (*model.ShareLink, error)
		// Authorize checks the link's password and issues a credential
		// scoped to this single token.
		Authorize(token, password string) (string, error)
		// Authorized verifies a credential previously issued for the link.
		// Links without a password need no credential.
		Authorized(link *model.ShareLink, credential string) bool
		// RecordDownload accounts one successful content fetch.
		RecordDownload(token string) error
		// Revoke flips the link's revoked flag. One-way.
		Revoke(token string) error
		// Delete removes the link.
		Delete(token string) error
	}

	// Options are the optional constraints of a new link.
	Options struct {
		ExpiresAt    int64 // unix seconds, 0 = never expires
		MaxDownloads *int64
		Password     string
	}

	registry struct {
		db            database.Client
		signingKey    []byte
		credentialTTL time.Duration
	}
)

// NewRegistry returns a new registry signing credentials with the given key.
func NewRegistry(db database.Client, signingKey []byte, credentialTTL time.Duration) Registry {
	return &registry{
		db:            db,
		signingKey:    signingKey,
		credentialTTL: credentialTTL,
	}
}

// Token generates a fresh unguessable share token: 18 cryptographically
// random bytes, URL-safe base64 without padding. Collisions are negligible;
// a primary-key conflict on insert is treated as a fatal creation error.
func Token() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (r *registry) Create(itemID string, opts Options) (*model.ShareLink, error) {
	if _, err := r.db.FindItem(itemID); err != nil {
		if r.db.IsNotFound(err) {
			return nil, cverror.NotFound("Item not found.")
		}
		return nil, errors.Wrap(err, "could not check item")
	}

	link := &model.ShareLink{
		Token:        Token(),
		ItemID:       itemID,
		ExpiresAt:    opts.ExpiresAt,
		MaxDownloads: opts.MaxDownloads,
	}

	if opts.Password != "" {
		hash, err := argon2.GenerateFromPasswordString(bind(opts.Password, link.Token), argon2.Default)
		if err != nil {
			return nil, errors.Wrap(err, "could not hash share password")
		}
		link.PasswordHash = hash
	}

	if err := r.db.CreateShare(link); err != nil {
		return nil, errors.Wrap(err, "could not create share link")
	}
	return link, nil
}

func (r *registry) Resolve(token string) (*model.ShareLink, error) {
	link, err := r.db.FindShare(token)
	if err != nil {
		if r.db.IsNotFound(err) {
			return nil, cverror.NotFound("Share link not found.")
		}
		return nil, errors.Wrap(err, "could not resolve share link")
	}

	if !link.Valid(time.Now().UTC().Unix()) {
		return nil, cverror.NotFound("Share link not found.")
	}
	return link, nil
}

func (r *registry) Authorize(token, password string) (string, error) {
	link, err := r.Resolve(token)
	if err != nil {
		return "", err
	}
	if !link.RequiresPassword() {
		return "", cverror.BadRequest("No password set on this link.")
	}

	if err := argon2.CompareHashAndPasswordString(link.PasswordHash, bind(password, token)); err != nil {
		if err == argon2.ErrMismatchedHashAndPassword {
			return "", cverror.Unauthorized("Invalid share password.")
		}
		return "", errors.Wrap(err, "could not verify share password")
	}

	now := time.Now().UTC()
	credential := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"share": token,
		"iat":   now.Unix(),
		"exp":   now.Add(r.credentialTTL).Unix(),
	})

	signed, err := credential.SignedString(r.signingKey)
	return signed, errors.Wrap(err, "could not sign share credential")
}

func (r *registry) Authorized(link *model.ShareLink, credential string) bool {
	if !link.RequiresPassword() {
		return true
	}
	if credential == "" {
		return false
	}

	parsed, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return r.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}

	// A credential opens exactly one link.
	scope, _ := claims["share"].(string)
	return scope == link.Token
}

func (r *registry) RecordDownload(token string) error {
	err := r.db.IncrementDownloadCount(token)
	if err != nil && r.db.IsNotFound(err) {
		return cverror.NotFound("Share link not found.")
	}
	return err
}

func (r *registry) Revoke(token string) error {
	err := r.db.RevokeShare(token)
	if err != nil && r.db.IsNotFound(err) {
		return cverror.NotFound("Share link not found.")
	}
	return err
}

func (r *registry) Delete(token string) error {
	err := r.db.DeleteShare(token)
	if err != nil && r.db.IsNotFound(err) {
		return cverror.NotFound("Share link not found.")
	}
	return err
}

// bind ties a password to one token so equal passwords produce unrelated
// digests across links.
func bind(password, token string) string {
	return password + "|" + token
}

package identity

import (
	"context"
	"log/slog"

	"console/cmd/internal/auth/session"
	"console/cmd/security/token"
)

// FileVerifier checks credential sign-ins against the users file. The file
// is re-read on every attempt so edits apply without a restart.
type FileVerifier struct {
	path string
	pw   Passwords
	log  *slog.Logger
}

var _ session.Verifier = (*FileVerifier)(nil)

// NewFileVerifier builds a verifier over the users file at path.
func NewFileVerifier(path string, pw Passwords, log *slog.Logger) *FileVerifier {
	if log == nil {
		log = slog.Default()
	}
	return &FileVerifier{path: path, pw: pw, log: log}
}

// Verify returns ok=false for an unknown email, a wrong password or an
// unreadable directory. It only returns an error when ctx is done.
func (v *FileVerifier) Verify(ctx context.Context, a session.Attempt) (session.SignIn, bool, error) {
	if err := ctx.Err(); err != nil {
		return session.SignIn{}, false, err
	}

	email := NormalizeEmail(a.Email)
	if email == "" || a.Password == "" {
		v.reject(ctx, email, "missing_fields")
		return session.SignIn{}, false, nil
	}

	dir, err := LoadDirectory(v.path)
	if err != nil {
		v.log.LogAttrs(ctx, slog.LevelError, "identity.directory.load.fail",
			slog.String("path", v.path),
			slog.Any("err", err),
		)
		v.pw.burn(a.Password)
		return session.SignIn{}, false, nil
	}

	u, found := dir.Lookup(email)
	if !found {
		v.pw.burn(a.Password)
		v.reject(ctx, email, "unknown_email")
		return session.SignIn{}, false, nil
	}

	ok, err := v.pw.Verify(u.Password, a.Password)
	if err != nil {
		v.log.LogAttrs(ctx, slog.LevelWarn, "identity.verify.bad_hash",
			slog.String("user_id", u.ID),
			slog.Any("err", err),
		)
		return session.SignIn{}, false, nil
	}
	if !ok {
		v.reject(ctx, email, "wrong_password")
		return session.SignIn{}, false, nil
	}

	return session.SignIn{
		Identity: session.Identity{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Image: u.Image,
		},
	}, true, nil
}

func (v *FileVerifier) reject(ctx context.Context, email, reason string) {
	v.log.LogAttrs(ctx, slog.LevelInfo, "identity.verify.reject",
		slog.String("reason", reason),
		slog.String("email_fp", token.Fingerprint(email)),
	)
}

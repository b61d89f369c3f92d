package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/iliyamo/mentor-booking/internal/utils"
)

// User mirrors the 'users' table.
type User struct {
    ID           uint64
    Email        string
    PasswordHash string
    Role         string
    IsActive     bool
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// Create hashes the password, inserts the user and returns its ID.  The
// email is normalized the same way waitlist addresses are so that a user's
// account and waitlist rows line up.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
    email = NormalizeEmail(email)
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    res, err := r.db.ExecContext(ctx,
        "INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
        email, hash, role)
    if err != nil {
        if isDuplicateKey(err) {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

const userColumns = "id,email,password_hash,role,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (User, error) {
    var u User
    err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    if errors.Is(err, sql.ErrNoRows) {
        return u, ErrUserNotFound
    }
    return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
    return scanUser(r.db.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
    return scanUser(r.db.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

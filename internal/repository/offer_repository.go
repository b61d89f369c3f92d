package repository

import (
    "context"
    "database/sql"
    "errors"
)

// ActiveOffer is the purchase path a waitlist email links to, together with
// the instructor's display name.
type ActiveOffer struct {
    InstructorSlug   string
    InstructorName   string
    DiscordChannelID *string
    Type             string
    CheckoutURL      string
}

// OfferRepo reads instructors and their offers.
type OfferRepo struct {
    db *sql.DB
}

// NewOfferRepo returns a new OfferRepo bound to the provided database.
func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

// ActiveOffer returns the active offer for (slug, type).  The boolean is
// false when the instructor has no active offer of that type.
func (r *OfferRepo) ActiveOffer(ctx context.Context, slug, typ string) (ActiveOffer, bool, error) {
    const q = `SELECT i.slug, i.name, i.discord_channel_id, o.type, o.checkout_url
               FROM offers o
               JOIN instructors i ON i.slug = o.instructor_slug
               WHERE o.instructor_slug = ? AND o.type = ? AND o.active = 1
               ORDER BY o.id DESC
               LIMIT 1`
    var out ActiveOffer
    var channel sql.NullString
    err := r.db.QueryRowContext(ctx, q, slug, typ).Scan(&out.InstructorSlug, &out.InstructorName, &channel, &out.Type, &out.CheckoutURL)
    if errors.Is(err, sql.ErrNoRows) {
        return ActiveOffer{}, false, nil
    }
    if err != nil {
        return ActiveOffer{}, false, err
    }
    if channel.Valid && channel.String != "" {
        c := channel.String
        out.DiscordChannelID = &c
    }
    return out, true, nil
}

// InstructorName returns the display name for slug or ErrInstructorNotFound.
func (r *OfferRepo) InstructorName(ctx context.Context, slug string) (string, error) {
    var name string
    err := r.db.QueryRowContext(ctx, `SELECT name FROM instructors WHERE slug = ?`, slug).Scan(&name)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrInstructorNotFound
    }
    return name, err
}

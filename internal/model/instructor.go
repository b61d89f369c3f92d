package model

import "time"

// Instructor is a mentor listed on the marketing site, addressed by slug.
type Instructor struct {
    Slug             string  // instructors.slug
    Name             string  // instructors.name
    DiscordChannelID *string // instructors.discord_channel_id (nullable)
}

// Offer is the purchase path for one instructor and mentorship type.  Only
// one offer per (slug, type) may be active at a time.
type Offer struct {
    ID             uint64 // offers.id
    InstructorSlug string // offers.instructor_slug
    Type           string // offers.type
    CheckoutURL    string // offers.checkout_url
    Active         bool   // offers.active
}

// Inventory is the number of open spots for an instructor and type.
type Inventory struct {
    InstructorSlug string    // inventory.instructor_slug
    Type           string    // inventory.type
    Count          int       // inventory.count
    UpdatedAt      time.Time // inventory.updated_at
}

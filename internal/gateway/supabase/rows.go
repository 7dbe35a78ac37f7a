package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
)

// businessRow mirrors the businesses table wire format.
type businessRow struct {
	ID            string     `json:"id,omitempty"`
	OwnerID       string     `json:"owner_id"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	ImageURL      string     `json:"image_url"`
	WhatsApp      string     `json:"whatsapp"`
	Location      string     `json:"location,omitempty"`
	Website       string     `json:"website,omitempty"`
	Instagram     string     `json:"instagram,omitempty"`
	Facebook      string     `json:"facebook,omitempty"`
	Status        string     `json:"status"`
	Likes         int        `json:"likes,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	Plan          string     `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	AdminNote     string     `json:"admin_note,omitempty"`
}

func (r businessRow) toDomain() domain.Business {
	b := domain.Business{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Name:          r.Name,
		Category:      r.Category,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		WhatsApp:      r.WhatsApp,
		Location:      r.Location,
		Website:       r.Website,
		Instagram:     r.Instagram,
		Facebook:      r.Facebook,
		Status:        domain.BusinessStatus(r.Status),
		Likes:         r.Likes,
		Plan:          domain.PlanType(r.Plan),
		PlanExpiresAt: r.PlanExpiresAt,
		AdminNote:     r.AdminNote,
	}
	if r.CreatedAt != nil {
		b.CreatedAt = *r.CreatedAt
	}
	return b
}

func rowFromDomain(b domain.Business) businessRow {
	return businessRow{
		OwnerID:       b.OwnerID,
		Name:          b.Name,
		Category:      b.Category,
		Description:   b.Description,
		ImageURL:      b.ImageURL,
		WhatsApp:      b.WhatsApp,
		Location:      b.Location,
		Website:       b.Website,
		Instagram:     b.Instagram,
		Facebook:      b.Facebook,
		Status:        string(b.Status),
		Plan:          string(b.Plan),
		PlanExpiresAt: b.PlanExpiresAt,
		AdminNote:     b.AdminNote,
	}
}

func (c *Client) FetchProfile(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
	path := "/rest/v1/profiles?select=*&id=eq." + url.QueryEscape(userID)

	var rows []gateway.ProfileRow
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) InsertProfile(ctx context.Context, row gateway.ProfileRow) (*gateway.ProfileRow, error) {
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []gateway.ProfileRow
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/profiles", []gateway.ProfileRow{row}, headers, &rows); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert profile: empty representation")
	}
	return &rows[0], nil
}

func (c *Client) UpdateProfileBusiness(ctx context.Context, userID, businessID string) error {
	path := "/rest/v1/profiles?id=eq." + url.QueryEscape(userID)

	body := map[string]any{"business_id": nil}
	if businessID != "" {
		body["business_id"] = businessID
	}
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil, nil); err != nil {
		return fmt.Errorf("update profile business: %w", err)
	}
	return nil
}

func (c *Client) FetchLikedBusinessIDs(ctx context.Context, userID string) ([]string, error) {
	path := "/rest/v1/business_likes?select=business_id&limit=100&user_id=eq." + url.QueryEscape(userID)

	var rows []struct {
		BusinessID string `json:"business_id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch liked businesses: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.BusinessID)
	}
	return ids, nil
}

func (c *Client) FetchBusinesses(ctx context.Context) ([]domain.Business, error) {
	var rows []businessRow
	if err := c.doJSON(ctx, http.MethodGet, "/rest/v1/businesses?select=*", nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch businesses: %w", err)
	}

	out := make([]domain.Business, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (c *Client) InsertBusiness(ctx context.Context, b domain.Business) (*domain.Business, error) {
	headers := map[string]string{"Prefer": "return=representation"}

	var rows []businessRow
	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/businesses", []businessRow{rowFromDomain(b)}, headers, &rows); err != nil {
		return nil, fmt.Errorf("insert business: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert business: empty representation")
	}
	inserted := rows[0].toDomain()
	return &inserted, nil
}

func (c *Client) UpdateBusiness(ctx context.Context, id string, patch gateway.BusinessPatch) error {
	body := map[string]any{}
	setString := func(col string, v *string) {
		if v != nil {
			body[col] = *v
		}
	}
	setString("name", patch.Name)
	setString("category", patch.Category)
	setString("description", patch.Description)
	setString("image_url", patch.ImageURL)
	setString("whatsapp", patch.WhatsApp)
	setString("location", patch.Location)
	setString("website", patch.Website)
	setString("instagram", patch.Instagram)
	setString("facebook", patch.Facebook)
	setString("admin_note", patch.AdminNote)
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if patch.Plan != nil {
		body["plan"] = string(*patch.Plan)
	}
	if patch.PlanExpiresAt != nil {
		if patch.PlanExpiresAt.IsZero() {
			body["plan_expires_at"] = nil
		} else {
			body["plan_expires_at"] = patch.PlanExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	if len(body) == 0 {
		return nil
	}

	path := "/rest/v1/businesses?id=eq." + url.QueryEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil, nil); err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	return nil
}

func (c *Client) DeleteBusiness(ctx context.Context, id string) error {
	path := "/rest/v1/businesses?id=eq." + url.QueryEscape(id)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	return nil
}

// landingRow wraps the landing document; the table stores the whole
// document as a jsonb column on the singleton row.
type landingRow struct {
	ID      int                   `json:"id"`
	Content domain.LandingContent `json:"content"`
}

func (c *Client) FetchLandingContent(ctx context.Context) (*domain.LandingContent, error) {
	var rows []landingRow
	if err := c.doJSON(ctx, http.MethodGet, "/rest/v1/landing_content?select=*&id=eq.1", nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("fetch landing content: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].Content, nil
}

func (c *Client) UpsertLandingContent(ctx context.Context, lc domain.LandingContent) error {
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	body := []landingRow{{ID: 1, Content: lc}}

	if err := c.doJSON(ctx, http.MethodPost, "/rest/v1/landing_content", body, headers, nil); err != nil {
		return fmt.Errorf("upsert landing content: %w", err)
	}
	return nil
}

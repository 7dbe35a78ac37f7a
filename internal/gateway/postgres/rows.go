package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
)

func (g *Gateway) FetchProfile(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
	var row gateway.ProfileRow
	var businessID sql.NullString
	err := g.pool.QueryRow(ctx, `
select id::text, email, coalesce(full_name, ''), business_id::text, coalesce(role, 'CLIENT')
from profiles where id = $1;
`, userID).Scan(&row.ID, &row.Email, &row.FullName, &businessID, &row.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	row.BusinessID = businessID.String
	return &row, nil
}

func (g *Gateway) InsertProfile(ctx context.Context, row gateway.ProfileRow) (*gateway.ProfileRow, error) {
	role := row.Role
	if role == "" {
		role = "CLIENT"
	}
	var out gateway.ProfileRow
	var businessID sql.NullString
	err := g.pool.QueryRow(ctx, `
insert into profiles (id, email, full_name, role)
values ($1, $2, nullif($3, ''), $4)
on conflict (id) do update set
  email = excluded.email,
  full_name = coalesce(excluded.full_name, profiles.full_name)
returning id::text, email, coalesce(full_name, ''), business_id::text, role;
`, row.ID, row.Email, row.FullName, role).Scan(&out.ID, &out.Email, &out.FullName, &businessID, &out.Role)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	out.BusinessID = businessID.String
	return &out, nil
}

func (g *Gateway) UpdateProfileBusiness(ctx context.Context, userID, businessID string) error {
	var arg any
	if businessID != "" {
		arg = businessID
	}
	if _, err := g.pool.Exec(ctx, `
update profiles set business_id = $2 where id = $1;
`, userID, arg); err != nil {
		return fmt.Errorf("update profile business: %w", err)
	}
	return nil
}

func (g *Gateway) FetchLikedBusinessIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := g.pool.Query(ctx, `
select business_id::text from business_likes where user_id = $1 limit 100;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch liked businesses: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const businessColumns = `
id::text, owner_id::text, name, category, description,
coalesce(image_url, ''), coalesce(whatsapp, ''), coalesce(location, ''),
coalesce(website, ''), coalesce(instagram, ''), coalesce(facebook, ''),
status, likes, created_at, plan, plan_expires_at, coalesce(admin_note, '')`

func scanBusiness(row pgx.Row) (domain.Business, error) {
	var b domain.Business
	var status, plan string
	var expires *time.Time
	err := row.Scan(
		&b.ID, &b.OwnerID, &b.Name, &b.Category, &b.Description,
		&b.ImageURL, &b.WhatsApp, &b.Location,
		&b.Website, &b.Instagram, &b.Facebook,
		&status, &b.Likes, &b.CreatedAt, &plan, &expires, &b.AdminNote,
	)
	if err != nil {
		return domain.Business{}, err
	}
	b.Status = domain.BusinessStatus(status)
	b.Plan = domain.PlanType(plan)
	b.PlanExpiresAt = expires
	return b, nil
}

func (g *Gateway) FetchBusinesses(ctx context.Context) ([]domain.Business, error) {
	rows, err := g.pool.Query(ctx, `select `+businessColumns+` from businesses order by created_at desc;`)
	if err != nil {
		return nil, fmt.Errorf("fetch businesses: %w", gateway.Unreachable(err))
	}
	defer rows.Close()

	out := make([]domain.Business, 0, 32)
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) InsertBusiness(ctx context.Context, b domain.Business) (*domain.Business, error) {
	row := g.pool.QueryRow(ctx, `
insert into businesses
  (owner_id, name, category, description, image_url, whatsapp, location,
   website, instagram, facebook, status, plan, plan_expires_at, admin_note)
values
  ($1, $2, $3, $4, nullif($5,''), nullif($6,''), nullif($7,''),
   nullif($8,''), nullif($9,''), nullif($10,''), $11, $12, $13, nullif($14,''))
returning `+businessColumns+`;
`, b.OwnerID, b.Name, b.Category, b.Description, b.ImageURL, b.WhatsApp,
		b.Location, b.Website, b.Instagram, b.Facebook,
		string(b.Status), string(b.Plan), b.PlanExpiresAt, b.AdminNote)

	inserted, err := scanBusiness(row)
	if err != nil {
		return nil, fmt.Errorf("insert business: %w", err)
	}
	return &inserted, nil
}

func (g *Gateway) UpdateBusiness(ctx context.Context, id string, patch gateway.BusinessPatch) error {
	sets := make([]string, 0, 14)
	args := make([]any, 0, 15)
	args = append(args, id)

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	addString := func(col string, v *string) {
		if v != nil {
			add(col, *v)
		}
	}
	addString("name", patch.Name)
	addString("category", patch.Category)
	addString("description", patch.Description)
	addString("image_url", patch.ImageURL)
	addString("whatsapp", patch.WhatsApp)
	addString("location", patch.Location)
	addString("website", patch.Website)
	addString("instagram", patch.Instagram)
	addString("facebook", patch.Facebook)
	addString("admin_note", patch.AdminNote)
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Plan != nil {
		add("plan", string(*patch.Plan))
	}
	if patch.PlanExpiresAt != nil {
		if patch.PlanExpiresAt.IsZero() {
			add("plan_expires_at", nil)
		} else {
			add("plan_expires_at", *patch.PlanExpiresAt)
		}
	}
	if len(sets) == 0 {
		return nil
	}

	q := `update businesses set ` + strings.Join(sets, ", ") + ` where id = $1;`
	tag, err := g.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (g *Gateway) DeleteBusiness(ctx context.Context, id string) error {
	// business_likes rows go with it via the FK cascade.
	tag, err := g.pool.Exec(ctx, `delete from businesses where id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete business: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (g *Gateway) FetchLandingContent(ctx context.Context) (*domain.LandingContent, error) {
	var raw []byte
	err := g.pool.QueryRow(ctx, `select content from landing_content where id = 1;`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch landing content: %w", gateway.Unreachable(err))
	}

	var lc domain.LandingContent
	if err := json.Unmarshal(raw, &lc); err != nil {
		return nil, fmt.Errorf("decode landing content: %w", err)
	}
	return &lc, nil
}

func (g *Gateway) UpsertLandingContent(ctx context.Context, lc domain.LandingContent) error {
	raw, err := json.Marshal(lc)
	if err != nil {
		return fmt.Errorf("encode landing content: %w", err)
	}
	if _, err := g.pool.Exec(ctx, `
insert into landing_content (id, content) values (1, $1)
on conflict (id) do update set content = excluded.content, updated_at = now();
`, raw); err != nil {
		return fmt.Errorf("upsert landing content: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
)

// ToggleLike flips the (user, business) like membership inside a
// transaction. The uniqueness of business_likes(user_id, business_id)
// plus the transactional counter update makes the operation idempotent
// server-side, independent of any client throttling.
func (g *Gateway) ToggleLike(ctx context.Context, userID, businessID string) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("toggle like: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
delete from business_likes where user_id = $1 and business_id = $2;
`, userID, businessID)
	if err != nil {
		return fmt.Errorf("toggle like: delete: %w", err)
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
update businesses set likes = greatest(likes - 1, 0) where id = $1;
`, businessID); err != nil {
			return fmt.Errorf("toggle like: decrement: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx, `
insert into business_likes (user_id, business_id) values ($1, $2);
`, userID, businessID); err != nil {
			return fmt.Errorf("toggle like: insert: %w", err)
		}
		if _, err := tx.Exec(ctx, `
update businesses set likes = likes + 1 where id = $1;
`, businessID); err != nil {
			return fmt.Errorf("toggle like: increment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("toggle like: commit: %w", err)
	}
	return nil
}

// IncrementLike bumps the anonymous counter. Guest throttling happens
// client-side; the counter itself only ever moves by one per call.
func (g *Gateway) IncrementLike(ctx context.Context, businessID string) error {
	if _, err := g.pool.Exec(ctx, `
update businesses set likes = likes + 1 where id = $1;
`, businessID); err != nil {
		return fmt.Errorf("increment like: %w", err)
	}
	return nil
}

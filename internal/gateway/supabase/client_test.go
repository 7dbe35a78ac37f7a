package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Prefer string
	Body   map[string]any
	Bodies []map[string]any
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()

	recorded := &[]recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Prefer: r.Header.Get("Prefer"),
		}
		var single map[string]any
		var list []map[string]any
		dec := json.NewDecoder(r.Body)
		raw := json.RawMessage{}
		if err := dec.Decode(&raw); err == nil {
			if json.Unmarshal(raw, &single) == nil {
				rec.Body = single
			} else if json.Unmarshal(raw, &list) == nil {
				rec.Bodies = list
			}
		}
		*recorded = append(*recorded, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL, "anon-key"), recorded
}

func TestSignInStoresSessionAndEmitsEvent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "not-a-jwt-but-accepted",
			"expires_in":   3600,
			"user":         map[string]any{"id": "u-1", "email": "ana@example.com"},
		})
	})

	sub := client.SubscribeAuth()
	defer sub.Unsubscribe()

	sess, err := client.SignIn(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	select {
	case ev := <-sub.C:
		assert.Equal(t, gateway.EventSignedIn, ev.Kind)
		require.NotNil(t, ev.Session)
		assert.Equal(t, "u-1", ev.Session.UserID)
	case <-time.After(time.Second):
		t.Fatal("no auth event delivered")
	}

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "u-1", current.UserID)
}

func TestSignInClassifiesInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error_description": "Invalid login credentials"})
	})

	_, err := client.SignIn(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, gateway.KindInvalidCredentials, gateway.KindOf(err))
}

func TestSignUpWithoutSessionMeansConfirmationPending(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "u-2",
			"email": "nuevo@example.com",
		})
	})

	sess, err := client.SignUp(context.Background(), gateway.Credentials{
		Email: "nuevo@example.com", Password: "secret123", FullName: "Nuevo Usuario",
	})
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutClearsSessionEvenIfRemoteFails(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "tok", "expires_in": 3600,
				"user": map[string]any{"id": "u-1", "email": "a@b.c"},
			})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := client.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background()))

	sess, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, 2, calls)
}

func TestFetchBusinessesMapsRows(t *testing.T) {
	created := time.Date(2023, 8, 15, 10, 0, 0, 0, time.UTC)
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{
			"id":          "b-1",
			"owner_id":    "u-9",
			"name":        "GastroPub El Alquimista",
			"category":    "Comida Internacional",
			"description": "Cocina de autor",
			"image_url":   "https://img.example/b1.jpg",
			"whatsapp":    "15559998888",
			"status":      "APPROVED",
			"likes":       342,
			"created_at":  created.Format(time.RFC3339),
			"plan":        "PREMIUM",
		}})
	})

	businesses, err := client.FetchBusinesses(context.Background())
	require.NoError(t, err)
	require.Len(t, businesses, 1)

	b := businesses[0]
	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "u-9", b.OwnerID)
	assert.Equal(t, 342, b.Likes)
	assert.Equal(t, "APPROVED", string(b.Status))
	assert.Equal(t, "PREMIUM", string(b.Plan))
	assert.True(t, created.Equal(b.CreatedAt))

	require.Len(t, *recorded, 1)
	assert.Equal(t, "/rest/v1/businesses", (*recorded)[0].Path)
}

func TestFetchProfileMissingReturnsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	})

	row, err := client.FetchProfile(context.Background(), "u-404")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestToggleLikeCallsRPC(t *testing.T) {
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.ToggleLike(context.Background(), "u-1", "b-5"))

	require.Len(t, *recorded, 1)
	rec := (*recorded)[0]
	assert.Equal(t, "/rest/v1/rpc/toggle_like", rec.Path)
	assert.Equal(t, "b-5", rec.Body["business_id_to_toggle"])
}

func TestUpsertLandingContentUsesMergeDuplicates(t *testing.T) {
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	lc := domainLanding("Nuevo Título")
	require.NoError(t, client.UpsertLandingContent(context.Background(), lc))

	require.Len(t, *recorded, 1)
	rec := (*recorded)[0]
	assert.Equal(t, "/rest/v1/landing_content", rec.Path)
	assert.Contains(t, rec.Prefer, "merge-duplicates")
	require.Len(t, rec.Bodies, 1)
	assert.Equal(t, float64(1), rec.Bodies[0]["id"])
}

func domainLanding(title string) domain.LandingContent {
	lc := domain.DefaultLandingContent()
	lc.HeroTitle = title
	return lc
}

func TestUnreachableBackendClassified(t *testing.T) {
	client := New("http://127.0.0.1:1", "anon-key")

	err := client.Health(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsUnreachable(err))
}

package domain

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleClient  UserRole = "CLIENT"
	RoleVisitor UserRole = "VISITOR"
)

type BusinessStatus string

const (
	StatusPending  BusinessStatus = "PENDING"
	StatusApproved BusinessStatus = "APPROVED"
	StatusRejected BusinessStatus = "REJECTED"
	StatusPaused   BusinessStatus = "PAUSED"
)

type PlanType string

const (
	PlanFree    PlanType = "FREE"
	PlanInicial PlanType = "INICIAL"
	PlanPro     PlanType = "PRO"
	PlanPremium PlanType = "PREMIUM"
)

// User is the domain identity resolved from an authenticated session.
// Exactly one authoritative User exists per active session.
type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Role             UserRole `json:"role"`
	BusinessID       string   `json:"business_id,omitempty"`
	LikedBusinessIDs []string `json:"liked_business_ids,omitempty"`
}

// Likes returns whether the user's like list contains the business id.
func (u *User) Likes(businessID string) bool {
	for _, id := range u.LikedBusinessIDs {
		if id == businessID {
			return true
		}
	}
	return false
}

// Business is a directory listing owned by a client user.
// LikedByUser is derived from the current user's like list and is
// never persisted.
type Business struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	Description   string         `json:"description"`
	ImageURL      string         `json:"image_url"`
	WhatsApp      string         `json:"whatsapp"`
	Location      string         `json:"location,omitempty"`
	Website       string         `json:"website,omitempty"`
	Instagram     string         `json:"instagram,omitempty"`
	Facebook      string         `json:"facebook,omitempty"`
	Status        BusinessStatus `json:"status"`
	Likes         int            `json:"likes"`
	CreatedAt     time.Time      `json:"created_at"`
	Plan          PlanType       `json:"plan"`
	PlanExpiresAt *time.Time     `json:"plan_expires_at,omitempty"`
	AdminNote     string         `json:"admin_note,omitempty"`
	LikedByUser   bool           `json:"liked_by_user"`
}

type PlanConfig struct {
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Period      string   `json:"period"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	ButtonText  string   `json:"buttonText"`
	IsPopular   bool     `json:"isPopular,omitempty"`
}

// LandingContent is the site-wide configuration singleton, upserted
// with id=1 in the backend.
type LandingContent struct {
	HeroTitle       string                  `json:"hero_title"`
	HeroDescription string                  `json:"hero_description"`
	HeroImage       string                  `json:"hero_image"`
	CTAText         string                  `json:"cta_text"`
	AppName         string                  `json:"app_name,omitempty"`
	AppLogo         string                  `json:"app_logo,omitempty"`
	AdminWhatsApp   string                  `json:"admin_whatsapp,omitempty"`
	Plans           map[PlanType]PlanConfig `json:"plans,omitempty"`
}

// LandingPatch is a partial update of LandingContent. Nil fields leave
// the existing value untouched; an all-nil patch re-upserts the current
// document unchanged.
type LandingPatch struct {
	HeroTitle       *string                 `json:"hero_title,omitempty"`
	HeroDescription *string                 `json:"hero_description,omitempty"`
	HeroImage       *string                 `json:"hero_image,omitempty"`
	CTAText         *string                 `json:"cta_text,omitempty"`
	AppName         *string                 `json:"app_name,omitempty"`
	AppLogo         *string                 `json:"app_logo,omitempty"`
	AdminWhatsApp   *string                 `json:"admin_whatsapp,omitempty"`
	Plans           map[PlanType]PlanConfig `json:"plans,omitempty"`
}

// Apply merges the patch over the content and returns the result.
func (p LandingPatch) Apply(lc LandingContent) LandingContent {
	if p.HeroTitle != nil {
		lc.HeroTitle = *p.HeroTitle
	}
	if p.HeroDescription != nil {
		lc.HeroDescription = *p.HeroDescription
	}
	if p.HeroImage != nil {
		lc.HeroImage = *p.HeroImage
	}
	if p.CTAText != nil {
		lc.CTAText = *p.CTAText
	}
	if p.AppName != nil {
		lc.AppName = *p.AppName
	}
	if p.AppLogo != nil {
		lc.AppLogo = *p.AppLogo
	}
	if p.AdminWhatsApp != nil {
		lc.AdminWhatsApp = *p.AdminWhatsApp
	}
	if p.Plans != nil {
		lc.Plans = p.Plans
	}
	return lc
}

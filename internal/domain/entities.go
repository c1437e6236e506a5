// Package domain holds the core entity types shared by every component.
// It has no dependency on store, adapters, or the HTTP layer — domain
// types are plain data, never database rows or transport envelopes.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is the hierarchical permission level carried by a User.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleMaster      Role = "master"
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleSalesperson Role = "salesperson"
)

// roleRank orders roles from least to most privileged. super_admin always
// admits regardless of rank (see tenant.RoleAdmits).
var roleRank = map[Role]int{
	RoleSalesperson: 0,
	RoleManager:     1,
	RoleAdmin:       2,
	RoleMaster:      3,
	RoleSuperAdmin:  4,
}

// Rank returns the role's position in the ordering, or -1 if unknown.
func (r Role) Rank() int {
	rank, ok := roleRank[r]
	if !ok {
		return -1
	}
	return rank
}

// Capability is a fine-grained permission carried by an ExternalApiToken.
type Capability string

const (
	CapImportVehicles Capability = "import:vehicles"
	CapReadVehicles    Capability = "read:vehicles"
	CapUpdateVehicles  Capability = "update:vehicles"
	CapDeleteVehicles  Capability = "delete:vehicles"
	CapAutomationTrig  Capability = "automation:trigger"
)

// Dealership is the tenant isolation boundary. Every row except a small
// set of system defaults belongs to exactly one Dealership.
type Dealership struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Subdomain   string    `json:"subdomain"`
	DisplayName string    `json:"displayName"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User may be a global super_admin (DealershipID == nil) or scoped to one
// dealership.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	DealershipID *int64    `json:"dealershipId"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ExternalApiToken authenticates external (extension/integration)
// clients. Only TokenHash is ever persisted; the raw token is returned
// once, at creation time.
type ExternalApiToken struct {
	ID           int64        `json:"id"`
	DealershipID int64        `json:"dealershipId"`
	TokenName    string       `json:"tokenName"`
	TokenHash    string       `json:"-"`
	TokenPrefix  string       `json:"tokenPrefix"`
	Permissions  []Capability `json:"permissions"`
	ExpiresAt    *time.Time   `json:"expiresAt"`
	IsActive     bool         `json:"isActive"`
	LastUsedAt   *time.Time   `json:"lastUsedAt"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// HasCapability reports whether the token's permission set includes cap.
func (t ExternalApiToken) HasCapability(cap Capability) bool {
	for _, c := range t.Permissions {
		if c == cap {
			return true
		}
	}
	return false
}

// HasAllCapabilities reports whether the token's permission set is a
// superset of required.
func (t ExternalApiToken) HasAllCapabilities(required []Capability) bool {
	for _, c := range required {
		if !t.HasCapability(c) {
			return false
		}
	}
	return true
}

// VehicleType is a loose enum; scraped sources vary too much to lock it
// down further than "non-empty string" at the domain layer.
type Vehicle struct {
	ID                  int64           `json:"id"`
	DealershipID        int64           `json:"dealershipId"`
	Year                int             `json:"year"`
	Make                string          `json:"make"`
	Model               string          `json:"model"`
	Trim                string          `json:"trim"`
	Type                string          `json:"type"`
	Price               decimal.Decimal `json:"price"`
	Odometer            int             `json:"odometer"`
	VIN                 string          `json:"vin"`
	StockNumber         string          `json:"stockNumber"`
	Images              []string        `json:"images"`
	LocalImages         []string        `json:"localImages"`
	CarfaxURL           string          `json:"carfaxUrl"`
	DealerVdpURL        string          `json:"dealerVdpUrl"`
	LastScrapedAt       *time.Time      `json:"lastScrapedAt"`
	MarketplacePostedAt *time.Time      `json:"marketplacePostedAt"`
	SocialTemplates     string          `json:"socialTemplates"`
	ManualHeadline      string          `json:"manualHeadline"`
	ManualSubheadline   string          `json:"manualSubheadline"`
	ManualDescription   string          `json:"manualDescription"`
	IsManuallyEdited    bool            `json:"isManuallyEdited"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// DisplayImages implements the invariant from spec.md §3: when
// LocalImages is non-empty, external consumers see it in place of
// Images.
func (v Vehicle) DisplayImages() []string {
	if len(v.LocalImages) > 0 {
		return v.LocalImages
	}
	return v.Images
}

// Channel is the transport a Conversation/Message travels over.
type Channel string

const (
	ChannelWebsiteChat Channel = "website_chat"
	ChannelMessenger   Channel = "messenger"
	ChannelSMS         Channel = "sms"
	ChannelEmail       Channel = "email"
)

type Conversation struct {
	ID               int64      `json:"id"`
	DealershipID     int64      `json:"dealershipId"`
	Channel          Channel    `json:"channel"`
	ParticipantID    string     `json:"participantId"`
	PageAccessToken  string     `json:"-"`
	AssignedToUserID *int64     `json:"assignedToUserId"`
	AIEnabled        bool       `json:"aiEnabled"`
	AIWatchMode      bool       `json:"aiWatchMode"`
	LeadStatus       string     `json:"leadStatus"`
	PipelineStage    string     `json:"pipelineStage"`
	Tags             []string   `json:"tags"`
	HandoffName      string     `json:"handoffName"`
	HandoffPhone     string     `json:"handoffPhone"`
	HandoffEmail     string     `json:"handoffEmail"`
	GHLContactID     string     `json:"ghlContactId"`
	LastMessage      string     `json:"lastMessage"`
	LastMessageAt    *time.Time `json:"lastMessageAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type SyncSource string

const (
	SyncSourceProvider SyncSource = "provider"
	SyncSourceCRM      SyncSource = "crm"
	SyncSourceLotview  SyncSource = "lotview"
)

type Message struct {
	ID                int64            `json:"id"`
	DealershipID      int64            `json:"dealershipId"`
	ConversationID    int64            `json:"conversationId"`
	ExternalMessageID string           `json:"externalMessageId"`
	GHLMessageID      string           `json:"ghlMessageId"`
	Direction         MessageDirection `json:"direction"`
	SenderName        string           `json:"senderName"`
	Content           string           `json:"content"`
	IsRead            bool             `json:"isRead"`
	SentAt            time.Time        `json:"sentAt"`
	SyncSource        SyncSource       `json:"syncSource"`
	CreatedAt         time.Time        `json:"createdAt"`
}

type PostingStatus string

const (
	PostingQueued    PostingStatus = "queued"
	PostingPosting   PostingStatus = "posting"
	PostingPosted    PostingStatus = "posted"
	PostingFailed    PostingStatus = "failed"
	PostingCancelled PostingStatus = "cancelled"
	PostingInterrupted PostingStatus = "interrupted"
)

type PostingQueueItem struct {
	ID                int64         `json:"id"`
	DealershipID      int64         `json:"dealershipId"`
	UserID            int64         `json:"userId"`
	VehicleID         int64         `json:"vehicleId"`
	AccountID         string        `json:"accountId"`
	TemplateID        string        `json:"templateId"`
	Status            PostingStatus `json:"status"`
	Priority          int           `json:"priority"`
	AttemptCount      int           `json:"attemptCount"`
	LastError         string        `json:"lastError"`
	ScheduledFor      time.Time     `json:"scheduledFor"`
	PostedAt          *time.Time    `json:"postedAt"`
	ExternalListingID string        `json:"externalListingId"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// PostingToken is a single-use credential authorizing one publish
// attempt, bound to (UserID, VehicleID, Platform).
type PostingToken struct {
	Token        string     `json:"token"`
	UserID       int64      `json:"userId"`
	VehicleID    int64      `json:"vehicleId"`
	Platform     string     `json:"platform"`
	DealershipID int64      `json:"dealershipId"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	UsedAt       *time.Time `json:"usedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type ListingStatus string

const (
	ListingPosted  ListingStatus = "posted"
	ListingRemoved ListingStatus = "removed"
	ListingExpired ListingStatus = "expired"
)

// Listing is the marketplace-posting outcome row (spec.md §4.5 refers to
// it as "a listing row" without giving it a shape; SPEC_FULL §3.2 defines
// it).
type Listing struct {
	ID                int64         `json:"id"`
	DealershipID      int64         `json:"dealershipId"`
	VehicleID         int64         `json:"vehicleId"`
	AccountID         string        `json:"accountId"`
	Platform          string        `json:"platform"`
	ExternalListingID string        `json:"externalListingId"`
	Status            ListingStatus `json:"status"`
	PostedAt          time.Time     `json:"postedAt"`
	LastCheckedAt     *time.Time    `json:"lastCheckedAt"`
}

type ScrapeTrigger string

const (
	TriggerSchedule ScrapeTrigger = "schedule"
	TriggerManual   ScrapeTrigger = "manual"
	TriggerWebhook  ScrapeTrigger = "webhook"
)

type ScrapeRun struct {
	ID               int64         `json:"id"`
	DealershipID     int64         `json:"dealershipId"`
	TriggeredBy      ScrapeTrigger `json:"triggeredBy"`
	Method           string        `json:"method"`
	RetryCount       int           `json:"retryCount"`
	VehiclesFound    int           `json:"vehiclesFound"`
	VehiclesInserted int           `json:"vehiclesInserted"`
	VehiclesUpdated  int           `json:"vehiclesUpdated"`
	VehiclesDeleted  int           `json:"vehiclesDeleted"`
	StartedAt        time.Time     `json:"startedAt"`
	EndedAt          *time.Time    `json:"endedAt"`
	Error            string        `json:"error"`
	Interrupted      bool          `json:"interrupted"`
}

type AuditLog struct {
	ID           int64     `json:"id"`
	DealershipID *int64    `json:"dealershipId"`
	UserID       int64     `json:"userId"`
	Action       string    `json:"action"`
	Resource     string    `json:"resource"`
	ResourceID   string    `json:"resourceId"`
	Details      string    `json:"details"`
	IPAddress    string    `json:"ipAddress"`
	CreatedAt    time.Time `json:"createdAt"`
}

type ImpersonationSession struct {
	ID               int64      `json:"id"`
	SuperAdminID     int64      `json:"superAdminId"`
	TargetUserID     int64      `json:"targetUserId"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt"`
	ActionsPerformed int        `json:"actionsPerformed"`
}

// DealershipSettings holds the tenant-configurable knobs described in
// SPEC_FULL §3.1 — never environment variables, always Store rows.
type DealershipSettings struct {
	DealershipID         int64    `json:"dealershipId"`
	ScrapeWebhookSecret  string   `json:"-"`
	ExtensionHMACKey     string   `json:"-"`
	PostingDailyCap      int      `json:"postingDailyCap"`
	SchedulerCadenceCron string   `json:"schedulerCadenceCron"`
	AITemperature        float64  `json:"aiTemperature"`
	AIMaxTokens          int      `json:"aiMaxTokens"`
	AIReplyLengthCap     int      `json:"aiReplyLengthCap"`
	AIModel              string   `json:"aiModel"`
	CRMLocationID        string   `json:"crmLocationId"`
	CRMAPIKeyEncrypted   string   `json:"-"`
	ScraperSourceURLs    []string `json:"scraperSourceUrls"`
}

// ApiLog is the C7 per-adapter-call audit row (SPEC_FULL §3.3).
type ApiLog struct {
	ID             int64     `json:"id"`
	DealershipID   *int64    `json:"dealershipId"`
	Adapter        string    `json:"adapter"`
	RequestSummary string    `json:"requestSummary"`
	Success        bool      `json:"success"`
	StatusCode     int       `json:"statusCode"`
	ErrorCode      string    `json:"errorCode"`
	LatencyMS      int64     `json:"latencyMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

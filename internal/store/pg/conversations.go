package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type ConversationStore struct {
	db *pgxpool.Pool
}

func NewConversationStore(db *pgxpool.Pool) *ConversationStore {
	return &ConversationStore{db: db}
}

const conversationCols = `id, dealership_id, channel, participant_id, page_access_token, assigned_to_user_id,
	ai_enabled, ai_watch_mode, lead_status, pipeline_stage, tags, handoff_name, handoff_phone, handoff_email,
	ghl_contact_id, last_message, last_message_at, created_at, updated_at`

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.DealershipID, &c.Channel, &c.ParticipantID, &c.PageAccessToken, &c.AssignedToUserID,
		&c.AIEnabled, &c.AIWatchMode, &c.LeadStatus, &c.PipelineStage, &c.Tags, &c.HandoffName, &c.HandoffPhone,
		&c.HandoffEmail, &c.GHLContactID, &c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *ConversationStore) Get(ctx context.Context, id int64, dealershipID int64) (domain.Conversation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+conversationCols+` FROM conversations WHERE id = $1 AND dealership_id = $2`, id, dealershipID)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, store.Internal("conversations.Get", err)
	}
	return c, nil
}

// GetOrCreate upserts by the natural key (dealershipId, channel,
// participantId) — spec.md §3 invariant: at most one conversation per
// that triple.
func (s *ConversationStore) GetOrCreate(ctx context.Context, dealershipID int64, channel domain.Channel, participantID string) (domain.Conversation, bool, error) {
	row := s.db.QueryRow(ctx, `SELECT `+conversationCols+` FROM conversations WHERE dealership_id = $1 AND channel = $2 AND participant_id = $3`,
		dealershipID, channel, participantID)
	c, err := scanConversation(row)
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, false, store.Internal("conversations.GetOrCreate.lookup", err)
	}

	row = s.db.QueryRow(ctx, `
		INSERT INTO conversations (dealership_id, channel, participant_id, lead_status, pipeline_stage, ai_enabled, ai_watch_mode)
		VALUES ($1, $2, $3, 'new', 'new', false, false)
		ON CONFLICT (dealership_id, channel, participant_id) DO UPDATE SET dealership_id = EXCLUDED.dealership_id
		RETURNING `+conversationCols,
		dealershipID, channel, participantID)
	c, err = scanConversation(row)
	if err != nil {
		return domain.Conversation{}, false, store.Internal("conversations.GetOrCreate.insert", err)
	}
	return c, true, nil
}

func (s *ConversationStore) UpdateLastMessage(ctx context.Context, id int64, lastMessage string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE conversations SET last_message = $2, last_message_at = $3, updated_at = now() WHERE id = $1`,
		id, lastMessage, at)
	if err != nil {
		return store.Internal("conversations.UpdateLastMessage", err)
	}
	return nil
}

// UpdateHandoff persists mined contact fields once; never overwrites a
// non-empty stored value (spec.md §4.3.1).
func (s *ConversationStore) UpdateHandoff(ctx context.Context, id int64, name, phone, email string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE conversations SET
			handoff_name  = CASE WHEN handoff_name  = '' THEN $2 ELSE handoff_name  END,
			handoff_phone = CASE WHEN handoff_phone = '' THEN $3 ELSE handoff_phone END,
			handoff_email = CASE WHEN handoff_email = '' THEN $4 ELSE handoff_email END,
			updated_at = now()
		WHERE id = $1`, id, name, phone, email)
	if err != nil {
		return store.Internal("conversations.UpdateHandoff", err)
	}
	return nil
}

func (s *ConversationStore) SetGHLContactID(ctx context.Context, id int64, ghlContactID string) error {
	_, err := s.db.Exec(ctx, `UPDATE conversations SET ghl_contact_id = $2, updated_at = now() WHERE id = $1`, id, ghlContactID)
	if err != nil {
		return store.Internal("conversations.SetGHLContactID", err)
	}
	return nil
}

func (s *ConversationStore) SetAI(ctx context.Context, id int64, dealershipID int64, enabled, watchMode bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET ai_enabled = $3, ai_watch_mode = $4, updated_at = now()
		WHERE id = $1 AND dealership_id = $2`, id, dealershipID, enabled, watchMode)
	if err != nil {
		return store.Internal("conversations.SetAI", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) UpdateMetadata(ctx context.Context, id int64, dealershipID int64, leadStatus, pipelineStage string, tags []string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE conversations SET
			lead_status = COALESCE(NULLIF($3, ''), lead_status),
			pipeline_stage = COALESCE(NULLIF($4, ''), pipeline_stage),
			tags = COALESCE($5, tags),
			updated_at = now()
		WHERE id = $1 AND dealership_id = $2`, id, dealershipID, leadStatus, pipelineStage, tags)
	if err != nil {
		return store.Internal("conversations.UpdateMetadata", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ConversationStore) List(ctx context.Context, dealershipID int64, channel domain.Channel, page store.Page) (store.Paginated[domain.Conversation], error) {
	page = page.Normalize()
	rows, err := s.db.Query(ctx, `
		SELECT `+conversationCols+` FROM conversations
		WHERE dealership_id = $1 AND ($2 = '' OR channel = $2)
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $3 OFFSET $4`, dealershipID, string(channel), page.Limit, page.Offset)
	if err != nil {
		return store.Paginated[domain.Conversation]{}, store.Internal("conversations.List", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return store.Paginated[domain.Conversation]{}, store.Internal("conversations.List.scan", err)
		}
		out = append(out, c)
	}

	var total int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations WHERE dealership_id = $1 AND ($2 = '' OR channel = $2)`,
		dealershipID, string(channel)).Scan(&total); err != nil {
		return store.Paginated[domain.Conversation]{}, store.Internal("conversations.List.count", err)
	}

	return store.Paginated[domain.Conversation]{Items: out, Total: total}, nil
}

package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayubfarah/dealer-ops-core/internal/domain"
	"github.com/ayubfarah/dealer-ops-core/internal/store"
)

type MessageStore struct {
	db *pgxpool.Pool
}

func NewMessageStore(db *pgxpool.Pool) *MessageStore {
	return &MessageStore{db: db}
}

const messageCols = `id, dealership_id, conversation_id, external_message_id, ghl_message_id, direction,
	sender_name, content, is_read, sent_at, sync_source, created_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.DealershipID, &m.ConversationID, &m.ExternalMessageID, &m.GHLMessageID,
		&m.Direction, &m.SenderName, &m.Content, &m.IsRead, &m.SentAt, &m.SyncSource, &m.CreatedAt)
	return m, err
}

// FindDuplicate implements the dedup key: a match on either
// (dealershipId, externalMessageId) or (dealershipId, ghlMessageId)
// means duplicate. Empty strings never match — they are not a key.
func (s *MessageStore) FindDuplicate(ctx context.Context, dealershipID int64, externalMessageID, ghlMessageID string) (domain.Message, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE dealership_id = $1
		  AND ((external_message_id <> '' AND external_message_id = $2)
		    OR (ghl_message_id <> '' AND ghl_message_id = $3))
		LIMIT 1`, dealershipID, externalMessageID, ghlMessageID)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, store.Internal("messages.FindDuplicate", err)
	}
	return m, true, nil
}

// Insert relies on the unique constraints on (dealership_id,
// external_message_id) and (dealership_id, ghl_message_id) (partial,
// WHERE value <> '') rather than a read-then-write check — concurrent
// inbound webhook deliveries for the same message must not both
// succeed (spec.md §5).
func (s *MessageStore) Insert(ctx context.Context, m domain.Message) (domain.Message, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO messages (dealership_id, conversation_id, external_message_id, ghl_message_id,
			direction, sender_name, content, is_read, sent_at, sync_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT DO NOTHING
		RETURNING `+messageCols,
		m.DealershipID, m.ConversationID, m.ExternalMessageID, m.GHLMessageID,
		m.Direction, m.SenderName, m.Content, m.IsRead, m.SentAt, m.SyncSource)
	out, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, store.ErrAlreadyExists
	}
	if err != nil {
		return domain.Message{}, store.Internal("messages.Insert", err)
	}
	return out, nil
}

func (s *MessageStore) SetGHLMessageID(ctx context.Context, id int64, ghlMessageID string) error {
	tag, err := s.db.Exec(ctx, `UPDATE messages SET ghl_message_id = $2 WHERE id = $1`, id, ghlMessageID)
	if err != nil {
		return store.Internal("messages.SetGHLMessageID", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MessageStore) RecentByConversation(ctx context.Context, conversationID int64, dealershipID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1 AND dealership_id = $2
		ORDER BY sent_at DESC
		LIMIT $3`, conversationID, dealershipID, limit)
	if err != nil {
		return nil, store.Internal("messages.RecentByConversation", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, store.Internal("messages.RecentByConversation.scan", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// RecentInbound returns a conversation's customer-authored (inbound)
// messages newest-first, the scan order spec.md §4.3.1 requires for
// contact-info mining.
func (s *MessageStore) RecentInbound(ctx context.Context, conversationID int64, dealershipID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1 AND dealership_id = $2 AND direction = 'inbound'
		ORDER BY sent_at DESC
		LIMIT $3`, conversationID, dealershipID, limit)
	if err != nil {
		return nil, store.Internal("messages.RecentInbound", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, store.Internal("messages.RecentInbound.scan", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// RecentUserAuthored filters to human-authored outbound messages (a
// non-empty sender name). conversation.AIReplier does not call it, and
// AI replies are not held back when a salesperson has already replied.
func (s *MessageStore) RecentUserAuthored(ctx context.Context, conversationID int64, dealershipID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1 AND dealership_id = $2
		  AND direction = 'outbound' AND sender_name <> ''
		ORDER BY sent_at DESC
		LIMIT $3`, conversationID, dealershipID, limit)
	if err != nil {
		return nil, store.Internal("messages.RecentUserAuthored", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, store.Internal("messages.RecentUserAuthored.scan", err)
		}
		out = append(out, m)
	}
	return out, nil
}
